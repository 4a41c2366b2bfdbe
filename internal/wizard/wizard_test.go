package wizard

import (
	"alcyxob/health-protocols/internal/api/dto"
	"alcyxob/health-protocols/internal/client"
	"alcyxob/health-protocols/internal/domain"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubBackend struct {
	customerCalls atomic.Int32
	templateCalls atomic.Int32
	createCalls   atomic.Int32

	// customersGate, when set, blocks ListCustomers until closed. It does
	// not watch the context, like a response already on the wire.
	customersGate    chan struct{}
	customersEntered chan struct{}
	// createGate blocks CreateProtocol until closed.
	createGate    chan struct{}
	createEntered chan struct{}

	mu           sync.Mutex
	customerErrs []error
	templateErrs []error
	templates    []domain.ProtocolTemplate
	createErr    error
	lastBody     []byte
}

func newStub() *stubBackend {
	return &stubBackend{
		customersEntered: make(chan struct{}, 16),
		createEntered:    make(chan struct{}, 16),
	}
}

func (b *stubBackend) popErr(errs *[]error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (b *stubBackend) ListCustomers(context.Context, client.Token) ([]dto.UserResponse, error) {
	b.customerCalls.Add(1)
	b.customersEntered <- struct{}{}
	if b.customersGate != nil {
		<-b.customersGate
	}
	if err := b.popErr(&b.customerErrs); err != nil {
		return nil, err
	}
	return []dto.UserResponse{{ID: "c1", Name: "Cal", Email: "cal@example.com", Role: domain.RoleCustomer}}, nil
}

func (b *stubBackend) ListTemplates(context.Context, client.Token) ([]domain.ProtocolTemplate, error) {
	b.templateCalls.Add(1)
	if err := b.popErr(&b.templateErrs); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.templates != nil {
		return b.templates, nil
	}
	return []domain.ProtocolTemplate{*weightLossTemplate()}, nil
}

func (b *stubBackend) CreateProtocol(_ context.Context, _ client.Token, body []byte) (*dto.CreateProtocolResponse, error) {
	b.createCalls.Add(1)
	b.createEntered <- struct{}{}
	if b.createGate != nil {
		<-b.createGate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastBody = append([]byte(nil), body...)
	if b.createErr != nil {
		return nil, b.createErr
	}
	return &dto.CreateProtocolResponse{Protocol: dto.ProtocolResponse{ID: "p1", Name: "created"}}, nil
}

func newWizard(b *stubBackend) *Wizard {
	return New(b, "token", WithRetryPolicy(RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}))
}

// walkToGeneration drives an open wizard through every step with valid input.
func walkToGeneration(t *testing.T, w *Wizard) {
	t.Helper()
	require.NoError(t, w.SelectClient("c1"))
	_, err := w.Next()
	require.NoError(t, err)
	require.NoError(t, w.SelectTemplate("weight-loss"))
	_, err = w.Next()
	require.NoError(t, err)
	require.NoError(t, w.SetHealthInfo(HealthInfo{Conditions: []string{}}))
	_, err = w.Next()
	require.NoError(t, err)
	require.NoError(t, w.SetCustomization(Customization{DurationDays: 30}))
	s, err := w.Next()
	require.NoError(t, err)
	require.Equal(t, StepGeneration, s.Step)
}

func TestWizard_OpenFetchesCustomers(t *testing.T) {
	b := newStub()
	w := newWizard(b)

	s := w.Open(context.Background())
	assert.Equal(t, Session{}, s)
	w.Wait()

	customers, ok := w.CachedCustomers()
	require.True(t, ok)
	require.Len(t, customers, 1)
	assert.EqualValues(t, 1, b.customerCalls.Load())

	// Cached: no second request.
	_, err := w.Customers(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, b.customerCalls.Load())

	require.NoError(t, w.SelectClient("c1"))
	_, err = w.Next()
	require.NoError(t, err)
	w.Wait()
	_, ok = w.CachedTemplates()
	assert.True(t, ok)
	assert.EqualValues(t, 1, b.templateCalls.Load())

	// Re-entering client selection reuses the cache.
	_, err = w.Back()
	require.NoError(t, err)
	w.Wait()
	assert.EqualValues(t, 1, b.customerCalls.Load())
	w.Cancel()
}

func TestWizard_ClosedSession(t *testing.T) {
	w := newWizard(newStub())

	_, err := w.Next()
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, w.SelectClient("c1"), ErrSessionClosed)
	_, err = w.Snapshot()
	assert.ErrorIs(t, err, ErrSessionClosed)
	_, err = w.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSessionClosed)
	_, err = w.Customers(context.Background())
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestWizard_SubmitSuccess(t *testing.T) {
	b := newStub()
	w := newWizard(b)
	w.Open(context.Background())
	walkToGeneration(t, w)

	created, err := w.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "p1", created.Protocol.ID)
	assert.EqualValues(t, 1, b.createCalls.Load())
	assert.False(t, w.IsOpen())

	var req domain.ProtocolCreationRequest
	require.NoError(t, json.Unmarshal(b.lastBody, &req))
	assert.Equal(t, "c1", req.TargetCustomerID)
	assert.Equal(t, 30, req.Duration)
	assert.Equal(t, "weight-loss", req.TemplateID)
	w.Wait()
}

func TestWizard_DurationDefaultsFromTemplate(t *testing.T) {
	b := newStub()
	w := newWizard(b)
	w.Open(context.Background())
	require.NoError(t, w.SelectClient("c1"))
	_, err := w.Next()
	require.NoError(t, err)
	w.Wait()
	require.NoError(t, w.SelectTemplate("weight-loss"))
	_, err = w.Next()
	require.NoError(t, err)
	s, err := w.Next()
	require.NoError(t, err)
	assert.Equal(t, StepCustomization, s.Step)
	assert.Equal(t, 60, s.Custom.DurationDays)
	w.Cancel()
}

func TestWizard_DurationFallsBackToPhaseLength(t *testing.T) {
	tmpl := *weightLossTemplate()
	tmpl.DefaultDurationDays = 0
	b := newStub()
	b.templates = []domain.ProtocolTemplate{tmpl}
	w := newWizard(b)
	w.Open(context.Background())
	defer func() {
		w.Cancel()
		w.Wait()
	}()

	require.NoError(t, w.SelectClient("c1"))
	_, err := w.Next()
	require.NoError(t, err)
	w.Wait()
	require.NoError(t, w.SelectTemplate("weight-loss"))
	_, err = w.Next()
	require.NoError(t, err)
	s, err := w.Next()
	require.NoError(t, err)
	assert.Equal(t, tmpl.TotalDays(), s.Custom.DurationDays)
}

func TestWizard_SubmitTwiceSendsOnce(t *testing.T) {
	b := newStub()
	b.createGate = make(chan struct{})
	w := newWizard(b)
	w.Open(context.Background())
	walkToGeneration(t, w)

	done := make(chan error, 1)
	go func() {
		_, err := w.Submit(context.Background())
		done <- err
	}()
	<-b.createEntered

	for i := 0; i < 5; i++ {
		_, err := w.Submit(context.Background())
		assert.ErrorIs(t, err, ErrSubmissionInFlight)
	}

	close(b.createGate)
	require.NoError(t, <-done)
	assert.EqualValues(t, 1, b.createCalls.Load())
	w.Wait()
}

func TestWizard_PayloadTooLargeKeepsSession(t *testing.T) {
	b := newStub()
	b.createErr = &client.HTTPError{StatusCode: http.StatusRequestEntityTooLarge, Message: "too large", Limit: 100}
	w := newWizard(b)
	w.Open(context.Background())
	walkToGeneration(t, w)
	before, err := w.Snapshot()
	require.NoError(t, err)

	_, err = w.Submit(context.Background())
	var tooLarge *PayloadTooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.Equal(t, len(b.lastBody), tooLarge.Size)
	assert.Positive(t, tooLarge.Size)
	assert.EqualValues(t, 100, tooLarge.Limit)
	assert.Contains(t, err.Error(), "bytes")
	assert.False(t, Retryable(err))

	after, err := w.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, StepGeneration, after.Step)

	// The corrected submission goes through from the same state.
	b.mu.Lock()
	b.createErr = nil
	b.mu.Unlock()
	_, err = w.Submit(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, b.createCalls.Load())
	w.Wait()
}

func TestWizard_SubmitErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    any
		retryable bool
	}{
		{"unauthorized", &client.HTTPError{StatusCode: http.StatusUnauthorized}, new(*AuthError), false},
		{"forbidden", &client.HTTPError{StatusCode: http.StatusForbidden}, new(*AuthError), false},
		{"bad request", &client.HTTPError{StatusCode: http.StatusBadRequest}, new(*InvalidInputError), false},
		{"conflict", &client.HTTPError{StatusCode: http.StatusConflict}, new(*InvalidInputError), false},
		{"server", &client.HTTPError{StatusCode: http.StatusInternalServerError}, new(*ServerError), true},
		{"bad gateway", &client.HTTPError{StatusCode: http.StatusBadGateway}, new(*ServerError), true},
		{"network", errors.New("dial tcp: connection refused"), new(*NetworkError), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newStub()
			b.createErr = tt.err
			w := newWizard(b)
			w.Open(context.Background())
			walkToGeneration(t, w)

			_, err := w.Submit(context.Background())
			require.Error(t, err)
			assert.ErrorAs(t, err, tt.target)
			assert.Equal(t, tt.retryable, Retryable(err))
			assert.True(t, w.IsOpen())
			assert.EqualValues(t, 1, b.createCalls.Load(), "submissions are never retried automatically")
			w.Cancel()
			w.Wait()
		})
	}
}

func TestWizard_SubmitValidationStaysLocal(t *testing.T) {
	b := newStub()
	w := newWizard(b)
	w.Open(context.Background())

	_, err := w.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNotAtGeneration)

	walkToGeneration(t, w)
	require.NoError(t, w.SetCustomization(Customization{DurationDays: 0}))
	_, err = w.Submit(context.Background())
	requireValidationError(t, err, StepCustomization, "duration")

	require.NoError(t, w.SetCustomization(Customization{DurationDays: 30}))
	require.NoError(t, w.SelectTemplate("unknown"))
	_, err = w.Submit(context.Background())
	requireValidationError(t, err, StepTemplateSelection, "templateId")

	assert.Zero(t, b.createCalls.Load())
	w.Cancel()
	w.Wait()
}

func TestWizard_NonFiniteHealthStaysLocal(t *testing.T) {
	b := newStub()
	w := newWizard(b)
	w.Open(context.Background())
	defer func() {
		w.Cancel()
		w.Wait()
	}()

	walkToGeneration(t, w)
	inf := math.Inf(1)
	require.NoError(t, w.SetHealthInfo(HealthInfo{Height: &inf}))
	_, err := w.Submit(context.Background())
	requireValidationError(t, err, StepHealthInformation, "height")
	assert.Zero(t, b.createCalls.Load())

	_, err = w.Back()
	require.NoError(t, err)
	s, err := w.Back()
	require.NoError(t, err)
	require.Equal(t, StepHealthInformation, s.Step)

	s, err = w.Next()
	requireValidationError(t, err, StepHealthInformation, "height")
	assert.Equal(t, StepHealthInformation, s.Step)
}

func TestWizard_CancelDiscardsState(t *testing.T) {
	b := newStub()
	w := newWizard(b)
	w.Open(context.Background())
	walkToGeneration(t, w)

	w.Cancel()
	assert.False(t, w.IsOpen())
	_, err := w.Snapshot()
	assert.ErrorIs(t, err, ErrSessionClosed)
	_, ok := w.CachedTemplates()
	assert.False(t, ok)

	s := w.Open(context.Background())
	assert.Equal(t, Session{}, s)
	assert.Equal(t, StepClientSelection, s.Step)
	w.Cancel()
	w.Wait()
}

func TestWizard_LateFetchAfterCancelIsDropped(t *testing.T) {
	b := newStub()
	b.customersGate = make(chan struct{})
	w := newWizard(b)

	w.Open(context.Background())
	<-b.customersEntered
	w.Cancel()
	close(b.customersGate)
	w.Wait()

	_, ok := w.CachedCustomers()
	assert.False(t, ok)
}

func TestWizard_LateFetchAppliesAfterAdvance(t *testing.T) {
	b := newStub()
	b.customersGate = make(chan struct{})
	w := newWizard(b)

	w.Open(context.Background())
	<-b.customersEntered
	require.NoError(t, w.SelectClient("c1"))
	s, err := w.Next()
	require.NoError(t, err)
	assert.Equal(t, StepTemplateSelection, s.Step)

	close(b.customersGate)
	w.Wait()
	customers, ok := w.CachedCustomers()
	assert.True(t, ok)
	assert.Len(t, customers, 1)

	after, err := w.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, s, after, "a fetch result never changes the session")
	w.Cancel()
}

func TestWizard_ConcurrentFetchesShareOneRequest(t *testing.T) {
	b := newStub()
	b.customersGate = make(chan struct{})
	w := newWizard(b)
	w.Open(context.Background())
	<-b.customersEntered

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			customers, err := w.Customers(context.Background())
			assert.NoError(t, err)
			assert.Len(t, customers, 1)
		}()
	}
	// Give the callers time to join the in-flight request.
	time.Sleep(20 * time.Millisecond)
	close(b.customersGate)
	wg.Wait()
	w.Wait()

	assert.EqualValues(t, 1, b.customerCalls.Load())
	w.Cancel()
}

func TestWizard_FetchRetriesTransientFailures(t *testing.T) {
	b := newStub()
	b.templateErrs = []error{
		errors.New("connection reset by peer"),
		&client.HTTPError{StatusCode: http.StatusServiceUnavailable},
	}
	w := newWizard(b)
	w.Open(context.Background())
	w.Wait()

	templates, err := w.Templates(context.Background())
	require.NoError(t, err)
	assert.Len(t, templates, 1)
	assert.EqualValues(t, 3, b.templateCalls.Load())
	w.Cancel()
}

func TestWizard_FetchDoesNotRetryAuthFailures(t *testing.T) {
	b := newStub()
	b.templateErrs = []error{&client.HTTPError{StatusCode: http.StatusUnauthorized, Message: "Token has expired"}}
	w := newWizard(b)
	w.Open(context.Background())
	w.Wait()

	_, err := w.Templates(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.EqualValues(t, 1, b.templateCalls.Load())
	w.Cancel()
}

func TestWizard_FetchGivesUpAfterAttempts(t *testing.T) {
	b := newStub()
	b.templateErrs = []error{
		&client.HTTPError{StatusCode: http.StatusBadGateway},
		&client.HTTPError{StatusCode: http.StatusBadGateway},
		&client.HTTPError{StatusCode: http.StatusBadGateway},
	}
	w := newWizard(b)
	w.Open(context.Background())
	w.Wait()

	_, err := w.Templates(context.Background())
	var srvErr *ServerError
	require.ErrorAs(t, err, &srvErr)
	assert.EqualValues(t, 3, b.templateCalls.Load())
	w.Cancel()
}
