package service

import (
	"alcyxob/health-protocols/internal/domain"
	"alcyxob/health-protocols/internal/repository"
	"alcyxob/health-protocols/internal/repository/memory"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fixture struct {
	db        *memory.DB
	auth      AuthService
	trainers  TrainerService
	templates TemplateService
	protocols ProtocolService
	gen       *fakeGenerator
	store     *fakeStorage
}

type fakeGenerator struct {
	calls int
	text  string
	err   error
}

func (g *fakeGenerator) Generate(context.Context, domain.ProtocolCreationRequest) (string, error) {
	g.calls++
	return g.text, g.err
}

type fakeStorage struct {
	objects    map[string][]byte
	presignErr error
	deleted    []string
}

func (s *fakeStorage) PutObject(_ context.Context, key, _ string, body []byte) error {
	s.objects[key] = body
	return nil
}

func (s *fakeStorage) GeneratePresignedDownloadURL(_ context.Context, key string, _ time.Duration) (string, error) {
	if s.presignErr != nil {
		return "", s.presignErr
	}
	return "https://storage.test/" + key, nil
}

func (s *fakeStorage) DeleteObject(_ context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	delete(s.objects, key)
	return nil
}

// failingAssignments rejects every write with err.
type failingAssignments struct {
	repository.AssignmentRepository
	err error
}

func (r failingAssignments) Create(context.Context, *domain.ProtocolAssignment) (primitive.ObjectID, error) {
	return primitive.NilObjectID, r.err
}

func setup(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()
	db := memory.NewDB()
	users := memory.NewUserRepository(db)
	templates := memory.NewTemplateRepository(db)
	gen := &fakeGenerator{text: "Eat well."}
	store := &fakeStorage{objects: map[string][]byte{}}

	f := &fixture{
		db:        db,
		auth:      NewAuthService(users, "secret", time.Hour, logger),
		trainers:  NewTrainerService(users, logger),
		templates: NewTemplateService(templates, logger),
		protocols: NewProtocolService(users, templates,
			memory.NewProtocolRepository(db), memory.NewAssignmentRepository(db), gen, store, logger),
		gen:   gen,
		store: store,
	}
	_, err := f.templates.SeedDefaults(context.Background())
	require.NoError(t, err)
	return f
}

func (f *fixture) register(t *testing.T, name, email string, role domain.Role) *domain.User {
	t.Helper()
	u, err := f.auth.Register(context.Background(), name, email, "password123", role)
	require.NoError(t, err)
	return u
}

// linkedPair registers a trainer and a customer linked to them.
func (f *fixture) linkedPair(t *testing.T) (trainer, customer *domain.User) {
	t.Helper()
	trainer = f.register(t, "Tara Trainer", "tara@example.com", domain.RoleTrainer)
	customer = f.register(t, "Cal Customer", "cal@example.com", domain.RoleCustomer)
	_, err := f.trainers.AddCustomerByEmail(context.Background(), trainer.ID, customer.Email)
	require.NoError(t, err)
	return trainer, customer
}

func validRequest(customerID string) domain.ProtocolCreationRequest {
	return domain.ProtocolCreationRequest{
		Name:       "Weight loss for Cal",
		Type:       "weight-loss",
		TemplateID: "weight-loss",
		Duration:   30,
		Config: domain.ProtocolConfig{Phases: []domain.ProtocolPhase{
			{Name: "Reset", DurationDays: 10},
			{Name: "Deficit", DurationDays: 20},
		}},
		TargetCustomerID: customerID,
	}
}

func TestAuth_RegisterAndLogin(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	u := f.register(t, "Tara", "  Tara@Example.com ", domain.RoleTrainer)
	assert.Equal(t, "tara@example.com", u.Email)
	assert.Empty(t, u.PasswordHash)

	_, err := f.auth.Register(ctx, "Again", "tara@example.com", "password123", domain.RoleTrainer)
	assert.ErrorIs(t, err, ErrUserAlreadyExists)

	token, user, err := f.auth.Login(ctx, "tara@example.com", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, u.ID, user.ID)

	_, _, err = f.auth.Login(ctx, "tara@example.com", "wrong")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
	_, _, err = f.auth.Login(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestTrainer_AddCustomerByEmail(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	trainer, customer := f.linkedPair(t)

	customers, err := f.trainers.GetManagedCustomers(ctx, trainer.ID)
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, customer.ID, customers[0].ID)

	// Linking again to the same trainer is a no-op.
	_, err = f.trainers.AddCustomerByEmail(ctx, trainer.ID, customer.Email)
	require.NoError(t, err)

	other := f.register(t, "Other", "other@example.com", domain.RoleTrainer)
	_, err = f.trainers.AddCustomerByEmail(ctx, other.ID, customer.Email)
	assert.ErrorIs(t, err, ErrCustomerAlreadyLinked)

	_, err = f.trainers.AddCustomerByEmail(ctx, trainer.ID, other.Email)
	assert.ErrorIs(t, err, ErrCustomerNotRole)

	_, err = f.trainers.AddCustomerByEmail(ctx, trainer.ID, "ghost@example.com")
	assert.ErrorIs(t, err, ErrCustomerNotFound)
}

func TestTemplates_SeedOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	n, err := f.templates.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "second seed must not overwrite")

	list, err := f.templates.ListTemplates(ctx)
	require.NoError(t, err)
	assert.Len(t, list, len(DefaultTemplates()))

	_, err = f.templates.GetTemplate(ctx, "nope")
	assert.ErrorIs(t, err, ErrTemplateNotFound)

	for _, tmpl := range DefaultTemplates() {
		assert.Equal(t, tmpl.DefaultDurationDays, tmpl.TotalDays(), tmpl.ID)
	}
}

func TestCreateProtocol_WithAssignment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	trainer, customer := f.linkedPair(t)

	created, err := f.protocols.CreateProtocol(ctx, trainer.ID, validRequest(customer.ID.Hex()))
	require.NoError(t, err)
	require.NotNil(t, created.Assignment)
	assert.Equal(t, domain.StatusActive, created.Assignment.Status)
	assert.Equal(t, created.Protocol.ID, created.Assignment.ProtocolID)
	assert.Equal(t, 30, created.Protocol.DurationDays)
	assert.Zero(t, f.gen.calls)

	details, err := f.protocols.ListCustomerAssignments(ctx, customer.ID)
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, created.Protocol.Name, details[0].Protocol.Name)
}

func TestCreateProtocol_Validation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	trainer, customer := f.linkedPair(t)

	req := validRequest(customer.ID.Hex())
	req.Duration = 0
	_, err := f.protocols.CreateProtocol(ctx, trainer.ID, req)
	assert.ErrorIs(t, err, ErrInvalidProtocol)

	req = validRequest(customer.ID.Hex())
	req.Duration = 20 // phases span 30 days
	_, err = f.protocols.CreateProtocol(ctx, trainer.ID, req)
	assert.ErrorIs(t, err, ErrInvalidProtocol)

	req = validRequest("not-hex")
	_, err = f.protocols.CreateProtocol(ctx, trainer.ID, req)
	assert.ErrorIs(t, err, ErrInvalidProtocol)

	req = validRequest(customer.ID.Hex())
	req.TemplateID = "unknown"
	_, err = f.protocols.CreateProtocol(ctx, trainer.ID, req)
	assert.ErrorIs(t, err, ErrTemplateNotFound)

	stranger := f.register(t, "Stranger", "stranger@example.com", domain.RoleCustomer)
	_, err = f.protocols.CreateProtocol(ctx, trainer.ID, validRequest(stranger.ID.Hex()))
	assert.ErrorIs(t, err, ErrCustomerNotManaged)

	_, err = f.protocols.CreateProtocol(ctx, trainer.ID, validRequest(primitive.NewObjectID().Hex()))
	assert.ErrorIs(t, err, ErrCustomerNotFound)
}

func TestCreateProtocol_Generation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	trainer, _ := f.linkedPair(t)

	req := validRequest("")
	req.Generate = true
	created, err := f.protocols.CreateProtocol(ctx, trainer.ID, req)
	require.NoError(t, err)
	assert.Nil(t, created.Assignment)
	assert.Equal(t, "Eat well.", created.Protocol.Config.GeneratedContent)
	assert.Equal(t, 1, f.gen.calls)

	f.gen.err = errors.New("quota exceeded")
	_, err = f.protocols.CreateProtocol(ctx, trainer.ID, req)
	assert.ErrorIs(t, err, ErrGenerationFailed)

	protocols, err := f.protocols.ListProtocols(ctx, trainer.ID)
	require.NoError(t, err)
	assert.Len(t, protocols, 1, "failed generation must not persist a protocol")
}

func TestCreateProtocol_GenerationDisabled(t *testing.T) {
	logger := zap.NewNop()
	db := memory.NewDB()
	users := memory.NewUserRepository(db)
	svc := NewProtocolService(users, memory.NewTemplateRepository(db),
		memory.NewProtocolRepository(db), memory.NewAssignmentRepository(db), nil, nil, logger)
	auth := NewAuthService(users, "secret", time.Hour, logger)
	trainer, err := auth.Register(context.Background(), "T", "t@example.com", "password123", domain.RoleTrainer)
	require.NoError(t, err)

	req := validRequest("")
	req.TemplateID = ""
	req.Generate = true
	created, err := svc.CreateProtocol(context.Background(), trainer.ID, req)
	require.NoError(t, err)
	assert.Empty(t, created.Protocol.Config.GeneratedContent)

	_, err = svc.ExportProtocol(context.Background(), trainer.ID, created.Protocol.ID)
	assert.Error(t, err)
}

func TestAssignProtocol_NoDuplicateActive(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	trainer, customer := f.linkedPair(t)

	created, err := f.protocols.CreateProtocol(ctx, trainer.ID, validRequest(customer.ID.Hex()))
	require.NoError(t, err)

	_, err = f.protocols.AssignProtocol(ctx, trainer.ID, created.Protocol.ID, customer.ID)
	assert.ErrorIs(t, err, ErrActiveAssignmentExists)

	// Completing the assignment frees the triple for a new active one.
	updated, err := f.protocols.UpdateAssignmentStatus(ctx, trainer.ID, created.Assignment.ID, domain.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, updated.Status)

	again, err := f.protocols.AssignProtocol(ctx, trainer.ID, created.Protocol.ID, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, again.Status)

	all, err := f.protocols.ListTrainerAssignments(ctx, trainer.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUpdateAssignmentStatus(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	trainer, customer := f.linkedPair(t)
	created, err := f.protocols.CreateProtocol(ctx, trainer.ID, validRequest(customer.ID.Hex()))
	require.NoError(t, err)
	id := created.Assignment.ID

	other := f.register(t, "Other", "other@example.com", domain.RoleTrainer)
	_, err = f.protocols.UpdateAssignmentStatus(ctx, other.ID, id, domain.StatusCancelled)
	assert.ErrorIs(t, err, ErrAssignmentAccessDenied)

	_, err = f.protocols.UpdateAssignmentStatus(ctx, trainer.ID, id, "paused")
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	_, err = f.protocols.UpdateAssignmentStatus(ctx, trainer.ID, id, domain.StatusCancelled)
	require.NoError(t, err)

	_, err = f.protocols.UpdateAssignmentStatus(ctx, trainer.ID, id, domain.StatusActive)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	_, err = f.protocols.UpdateAssignmentStatus(ctx, trainer.ID, primitive.NewObjectID(), domain.StatusCompleted)
	assert.ErrorIs(t, err, ErrAssignmentNotFound)
}

func TestExportProtocol(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	trainer, _ := f.linkedPair(t)
	created, err := f.protocols.CreateProtocol(ctx, trainer.ID, validRequest(""))
	require.NoError(t, err)

	before := time.Now().UTC()
	link, err := f.protocols.ExportProtocol(ctx, trainer.ID, created.Protocol.ID)
	require.NoError(t, err)
	assert.Contains(t, link.URL, "https://storage.test/protocols/"+trainer.ID.Hex())
	assert.WithinDuration(t, before.Add(exportURLExpiry), link.ExpiresAt, 5*time.Second)
	assert.Len(t, f.store.objects, 1)
	assert.Empty(t, f.store.deleted)

	other := f.register(t, "Other", "other@example.com", domain.RoleTrainer)
	_, err = f.protocols.ExportProtocol(ctx, other.ID, created.Protocol.ID)
	assert.ErrorIs(t, err, ErrProtocolAccessDenied)
}

func TestExportProtocol_PresignFailureRemovesSnapshot(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	trainer, _ := f.linkedPair(t)
	created, err := f.protocols.CreateProtocol(ctx, trainer.ID, validRequest(""))
	require.NoError(t, err)

	presignErr := errors.New("credentials expired")
	f.store.presignErr = presignErr
	link, err := f.protocols.ExportProtocol(ctx, trainer.ID, created.Protocol.ID)
	assert.ErrorIs(t, err, presignErr)
	assert.Nil(t, link)
	assert.Empty(t, f.store.objects)
	require.Len(t, f.store.deleted, 1)
	assert.Contains(t, f.store.deleted[0], "protocols/"+trainer.ID.Hex()+"/"+created.Protocol.ID.Hex())
}

func TestCreateProtocol_AssignmentFailureRollsBack(t *testing.T) {
	logger := zap.NewNop()
	db := memory.NewDB()
	users := memory.NewUserRepository(db)
	templates := memory.NewTemplateRepository(db)
	writeErr := errors.New("write concern timeout")
	svc := NewProtocolService(users, templates, memory.NewProtocolRepository(db),
		failingAssignments{AssignmentRepository: memory.NewAssignmentRepository(db), err: writeErr},
		nil, nil, logger)
	_, err := NewTemplateService(templates, logger).SeedDefaults(context.Background())
	require.NoError(t, err)

	f := &fixture{auth: NewAuthService(users, "secret", time.Hour, logger), trainers: NewTrainerService(users, logger)}
	trainer, customer := f.linkedPair(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err = svc.CreateProtocol(ctx, trainer.ID, validRequest(customer.ID.Hex()))
		assert.ErrorIs(t, err, writeErr)
	}

	protocols, err := svc.ListProtocols(ctx, trainer.ID)
	require.NoError(t, err)
	assert.Empty(t, protocols, "failed submissions must not leave protocols behind")
}
