package city

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/loci-cities/internal/types"
)

// Messages used when a failure carries no text of its own.
const (
	MsgLoadCitiesFailed = "failed to fetch cities"
	MsgLoadCityFailed   = "failed to fetch city data"
	MsgCreateFailed     = "failed to create city"
	MsgDeleteFailed     = "failed to delete city"
)

var (
	// ErrSessionInactive is returned by operations on a session that was never started or is closed.
	ErrSessionInactive = errors.New("city session is not active")
	// ErrSessionStarted is returned when Start is called twice.
	ErrSessionStarted = errors.New("city session already started")
)

// Service is what the view layer consumes.
type Service interface {
	Snapshot() View
	Subscribe(fn func(View)) (unsubscribe func())
	LoadOne(ctx context.Context, id types.CityID) error
	Create(ctx context.Context, city types.NewCity) (*types.City, error)
	Delete(ctx context.Context, id types.CityID) error
}

var _ Service = (*Session)(nil)

// View is a read-only copy of the state plus the derived countries.
type View struct {
	Cities      []types.City
	CurrentCity *types.City
	IsLoading   bool
	Error       string
	Countries   []types.Country
}

// supersede tracks the in-flight call of one operation kind. A newer call
// bumps gen and cancels the older one.
type supersede struct {
	gen    uint64
	cancel context.CancelFunc
}

// Session owns the state for one application session and funnels every
// network outcome through Reduce.
type Session struct {
	logger *slog.Logger
	repo   Repository

	mu      sync.Mutex
	state   State
	started bool
	closed  bool
	ctx     context.Context
	cancel  context.CancelFunc
	loadAll supersede
	loadOne supersede

	listeners    map[uint64]func(View)
	nextListener uint64
	// serialises reduce+notify so listeners observe transitions in order
	notifyMu sync.Mutex

	ready chan struct{}
}

// NewSession creates an idle session. Call Start to begin it.
func NewSession(repo Repository, logger *slog.Logger) *Session {
	return &Session{
		logger:    logger,
		repo:      repo,
		state:     InitialState(),
		listeners: make(map[uint64]func(View)),
		ready:     make(chan struct{}),
	}
}

// Start begins the session and loads the collection in the background.
// Cancelling ctx has the same effect as Close on in-flight calls.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionInactive
	}
	if s.started {
		s.mu.Unlock()
		return ErrSessionStarted
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	sessionCtx := s.ctx
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "City session started")

	go func() {
		defer close(s.ready)
		if err := s.LoadAll(sessionCtx); err != nil {
			s.logger.WarnContext(sessionCtx, "Initial city load skipped", slog.Any("error", err))
		}
	}()
	return nil
}

// Ready is closed once the start-up load has settled or been abandoned.
func (s *Session) Ready() <-chan struct{} {
	return s.ready
}

// Close ends the session. In-flight calls are cancelled and their results dropped.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	started := s.started
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	if started {
		<-s.ready
	} else {
		close(s.ready)
	}
	s.logger.Info("City session closed")
}

// Snapshot returns the current state. Countries are derived on every call.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Subscribe registers fn to receive the view after every applied action.
// fn runs on the dispatching goroutine and must not call session operations synchronously.
func (s *Session) Subscribe(fn func(View)) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// LoadAll replaces the collection with the store's. A newer LoadAll
// supersedes an older one still in flight.
func (s *Session) LoadAll(ctx context.Context) error {
	ctx, span := otel.Tracer("CitySession").Start(ctx, "LoadAll")
	defer span.End()

	l := s.logger.With(slog.String("method", "LoadAll"))

	callCtx, gen, release, err := s.begin(ctx, &s.loadAll)
	if err != nil {
		span.SetStatus(codes.Error, "session inactive")
		return err
	}
	defer release()

	s.dispatch(callCtx, &s.loadAll, gen, Loading{})

	cities, err := s.repo.ListCities(callCtx)
	if err != nil {
		s.fail(callCtx, span, l, &s.loadAll, gen, err, MsgLoadCitiesFailed)
		return nil
	}

	if s.dispatch(callCtx, &s.loadAll, gen, CitiesLoaded{Cities: cities}) {
		l.InfoContext(ctx, "Cities loaded", slog.Int("count", len(cities)))
		span.SetAttributes(attribute.Int("cities.count", len(cities)))
		span.SetStatus(codes.Ok, "Cities loaded")
	}
	return nil
}

// LoadOne selects the city with the given id, fetching it from the store.
// It does nothing when that city is already the current one.
func (s *Session) LoadOne(ctx context.Context, id types.CityID) error {
	ctx, span := otel.Tracer("CitySession").Start(ctx, "LoadOne", trace.WithAttributes(
		attribute.String("city.id", id.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "LoadOne"), slog.String("cityID", id.String()))

	s.mu.Lock()
	if cur := s.state.CurrentCity; cur != nil && cur.ID == id && s.activeLocked() {
		// still the newest request: an older fetch in flight must not land
		if s.loadOne.cancel != nil {
			s.loadOne.cancel()
			s.loadOne.cancel = nil
		}
		s.loadOne.gen++
		gen, selected, loading := s.loadOne.gen, *cur, s.state.IsLoading
		s.mu.Unlock()
		if loading {
			// the superseded fetch will never settle the loading flag
			s.dispatch(ctx, &s.loadOne, gen, CityLoaded{City: selected})
		}
		l.DebugContext(ctx, "City already selected, skipping fetch")
		span.SetStatus(codes.Ok, "already current")
		return nil
	}
	s.mu.Unlock()

	callCtx, gen, release, err := s.begin(ctx, &s.loadOne)
	if err != nil {
		span.SetStatus(codes.Error, "session inactive")
		return err
	}
	defer release()

	s.dispatch(callCtx, &s.loadOne, gen, Loading{})

	c, err := s.repo.GetCity(callCtx, id)
	if err != nil {
		s.fail(callCtx, span, l, &s.loadOne, gen, err, MsgLoadCityFailed)
		return nil
	}

	if s.dispatch(callCtx, &s.loadOne, gen, CityLoaded{City: c}) {
		l.InfoContext(ctx, "City loaded")
		span.SetStatus(codes.Ok, "City loaded")
	}
	return nil
}

// Create stores a new city. On success the stored record is appended and
// selected, and returned. A nil city with a nil error means the call failed
// or was cancelled; the failure is in the session state.
func (s *Session) Create(ctx context.Context, city types.NewCity) (*types.City, error) {
	ctx, span := otel.Tracer("CitySession").Start(ctx, "Create", trace.WithAttributes(
		attribute.String("city.name", city.CityName),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Create"), slog.String("cityName", city.CityName))

	callCtx, _, release, err := s.begin(ctx, nil)
	if err != nil {
		span.SetStatus(codes.Error, "session inactive")
		return nil, err
	}
	defer release()

	s.dispatch(callCtx, nil, 0, Loading{})

	created, err := s.repo.CreateCity(callCtx, city)
	if err != nil {
		s.fail(callCtx, span, l, nil, 0, err, MsgCreateFailed)
		return nil, nil
	}

	if !s.dispatch(callCtx, nil, 0, CityCreated{City: created}) {
		return nil, nil
	}
	l.InfoContext(ctx, "City created", slog.String("cityID", created.ID.String()))
	span.SetAttributes(attribute.String("city.id", created.ID.String()))
	span.SetStatus(codes.Ok, "City created")
	return &created, nil
}

// Delete removes a city from the store and the collection. Any successful
// delete clears the current selection.
func (s *Session) Delete(ctx context.Context, id types.CityID) error {
	ctx, span := otel.Tracer("CitySession").Start(ctx, "Delete", trace.WithAttributes(
		attribute.String("city.id", id.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Delete"), slog.String("cityID", id.String()))

	callCtx, _, release, err := s.begin(ctx, nil)
	if err != nil {
		span.SetStatus(codes.Error, "session inactive")
		return err
	}
	defer release()

	s.dispatch(callCtx, nil, 0, Loading{})

	if err := s.repo.DeleteCity(callCtx, id); err != nil {
		s.fail(callCtx, span, l, nil, 0, err, MsgDeleteFailed)
		return nil
	}

	if s.dispatch(callCtx, nil, 0, CityDeleted{ID: id}) {
		l.InfoContext(ctx, "City deleted")
		span.SetStatus(codes.Ok, "City deleted")
	}
	return nil
}

// begin derives the call context from the caller's and the session's. When
// owner is set the previous call of that kind is cancelled.
func (s *Session) begin(ctx context.Context, owner *supersede) (context.Context, uint64, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.activeLocked() {
		return nil, 0, nil, ErrSessionInactive
	}

	callCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	release := func() {
		stop()
		cancel()
	}

	var gen uint64
	if owner != nil {
		if owner.cancel != nil {
			owner.cancel()
		}
		owner.gen++
		owner.cancel = cancel
		gen = owner.gen
	}
	return callCtx, gen, release, nil
}

// dispatch applies a unless the call was cancelled or superseded. It reports
// whether the action was applied.
func (s *Session) dispatch(ctx context.Context, owner *supersede, gen uint64, a Action) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if ctx.Err() != nil || s.closed || (owner != nil && owner.gen != gen) {
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "Dropped action from cancelled call", slog.String("action", a.Type()))
		return false
	}
	s.state = Reduce(s.state, a)
	view := s.viewLocked()
	listeners := make([]func(View), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "Dispatched action", slog.String("action", a.Type()))
	for _, fn := range listeners {
		fn(view)
	}
	return true
}

func (s *Session) fail(ctx context.Context, span trace.Span, l *slog.Logger, owner *supersede, gen uint64, err error, fallback string) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		l.DebugContext(ctx, "Call cancelled, result discarded")
		span.AddEvent("cancelled")
		return
	}
	l.ErrorContext(ctx, "City store call failed", slog.Any("error", err))
	span.RecordError(err)
	span.SetStatus(codes.Error, fallback)
	s.dispatch(ctx, owner, gen, Rejected{Message: rejectionMessage(err, fallback)})
}

func (s *Session) activeLocked() bool {
	return s.started && !s.closed && s.ctx.Err() == nil
}

func (s *Session) viewLocked() View {
	v := View{
		Cities:    cloneCities(s.state.Cities),
		IsLoading: s.state.IsLoading,
		Error:     s.state.Error,
		Countries: Countries(s.state.Cities),
	}
	if s.state.CurrentCity != nil {
		c := *s.state.CurrentCity
		v.CurrentCity = &c
	}
	return v
}

func rejectionMessage(err error, fallback string) string {
	if err == nil || err.Error() == "" {
		return fallback
	}
	return err.Error()
}
