package main

import (
	"alcyxob/health-protocols/internal/api"
	"alcyxob/health-protocols/internal/api/dto"
	"alcyxob/health-protocols/internal/client"
	"alcyxob/health-protocols/internal/domain"
	"alcyxob/health-protocols/internal/repository/memory"
	"alcyxob/health-protocols/internal/service"
	"alcyxob/health-protocols/internal/wizard"
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newWizardAgainstBackend starts the real API over in-memory storage with a
// trainer linked to cal@example.com and returns a wizard logged in as the trainer.
func newWizardAgainstBackend(t *testing.T) *wizard.Wizard {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	nop := zap.NewNop()

	db := memory.NewDB()
	users := memory.NewUserRepository(db)
	templates := memory.NewTemplateRepository(db)
	auth := service.NewAuthService(users, "secret", time.Hour, nop)
	trainers := service.NewTrainerService(users, nop)
	templateService := service.NewTemplateService(templates, nop)
	_, err := templateService.SeedDefaults(ctx)
	require.NoError(t, err)

	trainer, err := auth.Register(ctx, "Tara", "tara@example.com", "password123", domain.RoleTrainer)
	require.NoError(t, err)
	_, err = auth.Register(ctx, "Cal", "cal@example.com", "password123", domain.RoleCustomer)
	require.NoError(t, err)
	_, err = trainers.AddCustomerByEmail(ctx, trainer.ID, "cal@example.com")
	require.NoError(t, err)

	router := gin.New()
	api.SetupRoutes(router, "secret", 1<<20, api.Services{
		Auth:     auth,
		Trainer:  trainers,
		Template: templateService,
		Protocol: service.NewProtocolService(users, templates,
			memory.NewProtocolRepository(db), memory.NewAssignmentRepository(db), nil, nil, nop),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	c, err := client.New(srv.URL)
	require.NoError(t, err)
	tok, _, err := c.Login(ctx, "tara@example.com", "password123")
	require.NoError(t, err)

	w := wizard.New(c, tok)
	t.Cleanup(func() {
		w.Cancel()
		w.Wait()
	})
	return w
}

func changedSet(names ...string) func(string) bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(name string) bool { return set[name] }
}

func TestResolveCustomer(t *testing.T) {
	customers := []dto.UserResponse{{ID: "64b000000000000000000001", Email: "cal@example.com"}}

	id, err := resolveCustomer(customers, "64b000000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, "64b000000000000000000001", id)

	id, err = resolveCustomer(customers, " Cal@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, "64b000000000000000000001", id)

	_, err = resolveCustomer(customers, "sam@example.com")
	assert.Error(t, err)
}

func TestRunWizard_CreatesProtocolWithTemplateDuration(t *testing.T) {
	w := newWizardAgainstBackend(t)
	opts := createFlags{
		customer:   "cal@example.com",
		template:   "weight-loss",
		age:        34,
		conditions: []string{"asthma"},
		intensity:  domain.IntensityModerate,
	}

	created, body, err := runWizard(context.Background(), w, opts, changedSet("age"))
	require.NoError(t, err)
	assert.Nil(t, body)
	require.NotNil(t, created)
	assert.Equal(t, 60, created.Protocol.DurationDays)
	assert.Equal(t, "Sustainable Weight Loss (60d)", created.Protocol.Name)
	require.NotNil(t, created.Assignment)
	assert.Equal(t, "active", created.Assignment.Status)
	assert.False(t, w.IsOpen())
}

func TestRunWizard_DryRunCustom(t *testing.T) {
	w := newWizardAgainstBackend(t)
	opts := createFlags{customer: "cal@example.com", custom: true, duration: 10, tags: []string{"b", "a"}}

	created, body, err := runWizard(context.Background(), w, opts, changedSet("duration"))
	require.NoError(t, err)
	assert.Nil(t, created)

	var req domain.ProtocolCreationRequest
	require.NoError(t, json.Unmarshal(body, &req))
	assert.Equal(t, domain.ProtocolTypeCustom, req.Type)
	assert.Equal(t, 10, req.Duration)
	assert.Equal(t, []string{"a", "b"}, req.Tags)
}

func TestRunWizard_StepErrors(t *testing.T) {
	t.Run("no template choice", func(t *testing.T) {
		w := newWizardAgainstBackend(t)
		_, _, err := runWizard(context.Background(), w, createFlags{customer: "cal@example.com"}, changedSet())
		var vErr *wizard.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, wizard.StepTemplateSelection, vErr.Step)
	})

	t.Run("unknown template", func(t *testing.T) {
		w := newWizardAgainstBackend(t)
		_, _, err := runWizard(context.Background(), w, createFlags{customer: "cal@example.com", template: "keto"}, changedSet())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "weight-loss")
	})

	t.Run("negative weight", func(t *testing.T) {
		w := newWizardAgainstBackend(t)
		opts := createFlags{customer: "cal@example.com", custom: true, weight: -70}
		_, _, err := runWizard(context.Background(), w, opts, changedSet("weight"))
		var vErr *wizard.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, wizard.StepHealthInformation, vErr.Step)
		assert.Contains(t, vErr.Fields, "weight")
	})

	t.Run("infinite age", func(t *testing.T) {
		w := newWizardAgainstBackend(t)
		opts := createFlags{customer: "cal@example.com", custom: true, age: math.Inf(1), duration: 10}
		_, _, err := runWizard(context.Background(), w, opts, changedSet("age", "duration"))
		var vErr *wizard.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, wizard.StepHealthInformation, vErr.Step)
		assert.Contains(t, vErr.Fields, "age")
	})

	t.Run("custom without duration", func(t *testing.T) {
		w := newWizardAgainstBackend(t)
		opts := createFlags{customer: "cal@example.com", custom: true}
		_, _, err := runWizard(context.Background(), w, opts, changedSet())
		var vErr *wizard.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, wizard.StepCustomization, vErr.Step)
	})

	t.Run("unknown customer", func(t *testing.T) {
		w := newWizardAgainstBackend(t)
		_, _, err := runWizard(context.Background(), w, createFlags{customer: "sam@example.com", custom: true}, changedSet())
		assert.ErrorContains(t, err, "not linked")
	})
}

func TestReportWizardError(t *testing.T) {
	var buf bytes.Buffer
	reportWizardError(&buf, &wizard.ValidationError{
		Step:   wizard.StepCustomization,
		Fields: map[string]string{"duration": "duration must be greater than 0"},
	})
	assert.Contains(t, buf.String(), "customization is incomplete")
	assert.Contains(t, buf.String(), "duration must be greater than 0")

	buf.Reset()
	reportWizardError(&buf, &wizard.PayloadTooLargeError{Size: 2048, Limit: 1024})
	assert.Contains(t, buf.String(), "2048 bytes")
	assert.Contains(t, buf.String(), "server accepts 1024")

	buf.Reset()
	reportWizardError(&buf, &wizard.AuthError{Status: 401, Message: "invalid token"})
	assert.Contains(t, buf.String(), "protocolctl login")
}
