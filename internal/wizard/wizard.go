package wizard

import (
	"alcyxob/health-protocols/internal/api/dto"
	"alcyxob/health-protocols/internal/client"
	"alcyxob/health-protocols/internal/domain"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Backend is the part of the REST API the wizard consumes. *client.Client implements it.
type Backend interface {
	ListCustomers(ctx context.Context, token client.Token) ([]dto.UserResponse, error)
	ListTemplates(ctx context.Context, token client.Token) ([]domain.ProtocolTemplate, error)
	CreateProtocol(ctx context.Context, token client.Token, body []byte) (*dto.CreateProtocolResponse, error)
}

// RetryPolicy bounds the transparent retries of idempotent fetches.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

var DefaultRetryPolicy = RetryPolicy{Attempts: 3, BaseDelay: 250 * time.Millisecond, MaxDelay: 2 * time.Second}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay << attempt
	if d <= 0 || (p.MaxDelay > 0 && d > p.MaxDelay) {
		d = p.MaxDelay
	}
	return d
}

type resource string

const (
	resourceCustomers resource = "customers"
	resourceTemplates resource = "templates"
)

// Wizard drives one protocol wizard at a time against a Backend. It is safe
// for concurrent use: fetches run in the background while the caller keeps
// editing the session.
type Wizard struct {
	backend Backend
	token   client.Token
	logger  *zap.Logger
	retry   RetryPolicy

	group      singleflight.Group
	submitting atomic.Bool
	fetches    sync.WaitGroup

	mu         sync.Mutex
	open       bool
	generation uint64
	sessionCtx context.Context
	cancel     context.CancelFunc
	session    Session
	customers  []dto.UserResponse
	templates  []domain.ProtocolTemplate
	haveCust   bool
	haveTmpl   bool
}

type Option func(*Wizard)

func WithLogger(logger *zap.Logger) Option {
	return func(w *Wizard) { w.logger = logger }
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(w *Wizard) { w.retry = p }
}

// New creates a closed wizard. Every backend call carries token.
func New(backend Backend, token client.Token, opts ...Option) *Wizard {
	w := &Wizard{
		backend: backend,
		token:   token,
		logger:  zap.NewNop(),
		retry:   DefaultRetryPolicy,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.retry.Attempts < 1 {
		w.retry.Attempts = 1
	}
	return w
}

// Open starts a new session at client selection with empty state and starts
// fetching the customer list. An open session is discarded first.
func (w *Wizard) Open(ctx context.Context) Session {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.resetLocked()
	w.open = true
	w.sessionCtx, w.cancel = context.WithCancel(context.WithoutCancel(ctx))
	w.logger.Debug("Wizard opened", zap.Uint64("generation", w.generation))
	w.enterLocked(StepClientSelection)
	return w.session.Clone()
}

// Cancel discards the session. Fetches still in flight are stopped and their
// results dropped.
func (w *Wizard) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.open {
		w.logger.Debug("Wizard cancelled", zap.Uint64("generation", w.generation), zap.Stringer("step", w.session.Step))
	}
	w.resetLocked()
}

// Wait blocks until background fetches have finished.
func (w *Wizard) Wait() {
	w.fetches.Wait()
}

// IsOpen reports whether a session is in progress.
func (w *Wizard) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.open
}

// Snapshot returns a copy of the current session.
func (w *Wizard) Snapshot() (Session, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.open {
		return Session{}, ErrSessionClosed
	}
	return w.session.Clone(), nil
}

func (w *Wizard) SelectClient(clientID string) error {
	return w.update(func(s Session) Session { return s.WithClient(clientID) })
}

func (w *Wizard) SelectTemplate(templateID string) error {
	return w.update(func(s Session) Session { return s.WithTemplate(templateID) })
}

func (w *Wizard) UseCustomTemplate() error {
	return w.update(func(s Session) Session { return s.WithCustomTemplate() })
}

func (w *Wizard) SetHealthInfo(h HealthInfo) error {
	return w.update(func(s Session) Session { return s.WithHealth(h) })
}

func (w *Wizard) SetCustomization(c Customization) error {
	return w.update(func(s Session) Session { return s.WithCustomization(c) })
}

func (w *Wizard) SetGenerate(generate bool) error {
	return w.update(func(s Session) Session { return s.WithGenerate(generate) })
}

func (w *Wizard) update(fn func(Session) Session) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.open {
		return ErrSessionClosed
	}
	w.session = fn(w.session)
	return nil
}

// Next advances the session if the current step is complete.
func (w *Wizard) Next() (Session, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.open {
		return Session{}, ErrSessionClosed
	}
	next, err := Next(w.session)
	if err != nil {
		return w.session.Clone(), err
	}
	w.session = next
	w.enterLocked(next.Step)
	return w.session.Clone(), nil
}

// Back moves the session one step back, keeping entered data.
func (w *Wizard) Back() (Session, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.open {
		return Session{}, ErrSessionClosed
	}
	prev, err := Back(w.session)
	if err != nil {
		return w.session.Clone(), err
	}
	w.session = prev
	w.enterLocked(prev.Step)
	return w.session.Clone(), nil
}

// Customers returns the customer list, fetching it if it is not cached.
func (w *Wizard) Customers(ctx context.Context) ([]dto.UserResponse, error) {
	gen, err := w.currentGeneration()
	if err != nil {
		return nil, err
	}
	if err := w.load(ctx, resourceCustomers, gen); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]dto.UserResponse(nil), w.customers...), nil
}

// Templates returns the template list, fetching it if it is not cached.
func (w *Wizard) Templates(ctx context.Context) ([]domain.ProtocolTemplate, error) {
	gen, err := w.currentGeneration()
	if err != nil {
		return nil, err
	}
	if err := w.load(ctx, resourceTemplates, gen); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]domain.ProtocolTemplate(nil), w.templates...), nil
}

// CachedCustomers returns the customers fetched for this session without
// triggering a fetch.
func (w *Wizard) CachedCustomers() ([]dto.UserResponse, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]dto.UserResponse(nil), w.customers...), w.haveCust
}

func (w *Wizard) CachedTemplates() ([]domain.ProtocolTemplate, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]domain.ProtocolTemplate(nil), w.templates...), w.haveTmpl
}

// Submit encodes the session and creates the protocol. At most one Submit
// runs at a time; a concurrent call returns ErrSubmissionInFlight without
// contacting the backend. On failure the session is left exactly as it was.
// On success the session is closed.
func (w *Wizard) Submit(ctx context.Context) (*dto.CreateProtocolResponse, error) {
	if !w.submitting.CompareAndSwap(false, true) {
		return nil, ErrSubmissionInFlight
	}
	defer w.submitting.Store(false)

	w.mu.Lock()
	if !w.open {
		w.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if w.session.Step != StepGeneration {
		w.mu.Unlock()
		return nil, ErrNotAtGeneration
	}
	session := w.session.Clone()
	gen := w.generation
	w.mu.Unlock()

	var tmpl *domain.ProtocolTemplate
	if !session.CustomTemplate {
		var err error
		if tmpl, err = w.template(ctx, gen, session.TemplateID); err != nil {
			return nil, err
		}
	}

	body, err := Encode(session, tmpl)
	if err != nil {
		return nil, err
	}

	created, err := w.backend.CreateProtocol(ctx, w.token, body)
	if err != nil {
		err = classify(err, len(body))
		w.logger.Warn("Protocol submission failed",
			zap.Int("payloadBytes", len(body)),
			zap.Bool("retryable", Retryable(err)),
			zap.Error(err))
		return nil, err
	}

	w.mu.Lock()
	if w.open && w.generation == gen {
		w.resetLocked()
	}
	w.mu.Unlock()
	w.logger.Info("Protocol submitted",
		zap.String("protocolId", created.Protocol.ID),
		zap.Int("payloadBytes", len(body)))
	return created, nil
}

// template resolves the selected template from the cache, fetching the list if needed.
func (w *Wizard) template(ctx context.Context, gen uint64, id string) (*domain.ProtocolTemplate, error) {
	if err := w.load(ctx, resourceTemplates, gen); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range w.templates {
		if w.templates[i].ID == id {
			tmpl := w.templates[i]
			return &tmpl, nil
		}
	}
	return nil, &ValidationError{
		Step:   StepTemplateSelection,
		Fields: map[string]string{"templateId": fmt.Sprintf("template %q is not available", id)},
	}
}

func (w *Wizard) currentGeneration() (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.open {
		return 0, ErrSessionClosed
	}
	return w.generation, nil
}

// resetLocked discards the session and its caches. The generation bump
// makes any fetch still in flight drop its result.
func (w *Wizard) resetLocked() {
	if w.cancel != nil {
		w.cancel()
	}
	w.generation++
	w.open = false
	w.session = Session{}
	w.sessionCtx, w.cancel = nil, nil
	w.customers, w.templates = nil, nil
	w.haveCust, w.haveTmpl = false, false
}

// enterLocked runs the side effects of entering step.
func (w *Wizard) enterLocked(step Step) {
	switch step {
	case StepClientSelection:
		if !w.haveCust {
			w.prefetchLocked(resourceCustomers)
		}
	case StepTemplateSelection:
		if !w.haveTmpl {
			w.prefetchLocked(resourceTemplates)
		}
	case StepCustomization:
		w.applyTemplateDefaultsLocked()
	}
}

// applyTemplateDefaultsLocked pre-fills the duration from the selected
// template when none has been entered yet. Templates without a default
// duration fall back to the length of their phases.
func (w *Wizard) applyTemplateDefaultsLocked() {
	if w.session.Custom.DurationDays != 0 || w.session.CustomTemplate {
		return
	}
	for i := range w.templates {
		t := &w.templates[i]
		if t.ID == w.session.TemplateID {
			w.session.Custom.DurationDays = t.DefaultDurationDays
			if w.session.Custom.DurationDays == 0 {
				w.session.Custom.DurationDays = t.TotalDays()
			}
			return
		}
	}
}

func (w *Wizard) prefetchLocked(kind resource) {
	ctx, gen := w.sessionCtx, w.generation
	w.fetches.Add(1)
	go func() {
		defer w.fetches.Done()
		if err := w.load(ctx, kind, gen); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Warn("Background fetch failed", zap.String("resource", string(kind)), zap.Error(err))
		}
	}()
}

// load fetches kind for session generation gen unless it is cached.
// Concurrent loads of the same resource share one request.
func (w *Wizard) load(ctx context.Context, kind resource, gen uint64) error {
	if w.cached(kind, gen) {
		return nil
	}
	key := fmt.Sprintf("%s/%d", kind, gen)
	_, err, _ := w.group.Do(key, func() (any, error) {
		if w.cached(kind, gen) {
			return nil, nil
		}
		return nil, w.withRetry(ctx, kind, func(ctx context.Context) error {
			return w.fetch(ctx, kind, gen)
		})
	})
	return err
}

func (w *Wizard) cached(kind resource, gen uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.generation != gen {
		return false
	}
	if kind == resourceCustomers {
		return w.haveCust
	}
	return w.haveTmpl
}

func (w *Wizard) fetch(ctx context.Context, kind resource, gen uint64) error {
	switch kind {
	case resourceCustomers:
		customers, err := w.backend.ListCustomers(ctx, w.token)
		if err != nil {
			return err
		}
		w.apply(gen, func() {
			w.customers, w.haveCust = customers, true
		})
	case resourceTemplates:
		templates, err := w.backend.ListTemplates(ctx, w.token)
		if err != nil {
			return err
		}
		w.apply(gen, func() {
			w.templates, w.haveTmpl = templates, true
		})
	}
	return nil
}

// apply stores a fetch result unless its session has been discarded since.
func (w *Wizard) apply(gen uint64, store func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.open || w.generation != gen {
		w.logger.Debug("Dropping fetch result for a discarded session", zap.Uint64("generation", gen))
		return
	}
	store()
}

func (w *Wizard) withRetry(ctx context.Context, kind resource, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < w.retry.Attempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(w.retry.delay(attempt - 1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		err = classify(fn(ctx), 0)
		if err == nil || !Retryable(err) {
			return err
		}
		w.logger.Debug("Retrying fetch",
			zap.String("resource", string(kind)),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return err
}
