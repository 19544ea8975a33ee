package agenda

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/inmo/backoffice/internal/platform/auth"
	"github.com/inmo/backoffice/internal/platform/metrics"
	"github.com/inmo/backoffice/pkg/debounce"
)

// TxRunner runs fn inside a store transaction.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

func noTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

// snapshotLimit bounds the visits loaded for one calendar range.
const snapshotLimit = 5000

// Availability is the free/held split of the catalog for one date.
type Availability struct {
	Date      string   `json:"date"`
	Agent     string   `json:"agent,omitempty"`
	Available []string `json:"available"`
	Occupied  []string `json:"occupied"`
}

type Service struct {
	visits       VisitRepository
	logger       zerolog.Logger
	metrics      *metrics.Metrics
	loc          *time.Location
	now          func() time.Time
	layout       Layout
	writeTimeout time.Duration
	runTx        TxRunner
	locks        agentLocks
	refresh      *debounce.Debouncer
}

func NewService(visits VisitRepository, logger zerolog.Logger) *Service {
	return &Service{
		visits:       visits,
		logger:       logger,
		loc:          time.UTC,
		now:          time.Now,
		layout:       DefaultLayout,
		writeTimeout: 10 * time.Second,
		runTx:        noTx,
		refresh:      debounce.New(500 * time.Millisecond),
	}
}

// SetMetrics attaches prometheus collectors. Without them nothing is recorded.
func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }

// SetLocation sets the zone "today" is computed in.
func (s *Service) SetLocation(loc *time.Location) {
	if loc != nil {
		s.loc = loc
	}
}

// SetClock replaces the wall clock, for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// SetWriteTimeout bounds writes that have been detached from the request.
func (s *Service) SetWriteTimeout(d time.Duration) {
	if d > 0 {
		s.writeTimeout = d
	}
}

// SetTxRunner makes snapshot reads and the following write atomic.
func (s *Service) SetTxRunner(run TxRunner) {
	if run != nil {
		s.runTx = run
	}
}

// Now is the current time in the configured zone.
func (s *Service) Now() time.Time { return s.now().In(s.loc) }

// IsPast reports whether date lies before today.
func (s *Service) IsPast(date string) bool {
	return NewDay(date, s.Now()).IsPast
}

func (s *Service) Catalog() []Slot { return Slots() }

func (s *Service) Availability(ctx context.Context, date, agent string) (*Availability, error) {
	d, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	agent = strings.TrimSpace(agent)
	visits, err := s.visits.ListByDate(ctx, d, agent)
	if err != nil {
		return nil, err
	}
	return &Availability{
		Date:      d,
		Agent:     agent,
		Available: nonNil(AvailableSlots(d, visits, agent)),
		Occupied:  nonNil(OccupiedSlots(d, visits, agent)),
	}, nil
}

func (s *Service) Calendar(ctx context.Context, vs ViewState) (*Grid, error) {
	days, err := Days(vs.View, vs.Anchor(), s.Now())
	if err != nil {
		return nil, err
	}
	from, to := days[0].Date, days[len(days)-1].Date
	items, _, err := s.visits.List(ctx, ListFilter{DateFrom: from, DateTo: to, AgentID: vs.Agent}, snapshotLimit, 0)
	if err != nil {
		return nil, err
	}
	grid := s.layout.BuildGrid(days, deref(items), vs.View, vs.Agent)
	return &grid, nil
}

func (s *Service) CreateVisit(ctx context.Context, req CreateRequest) (*Visit, error) {
	v := &Visit{
		ClientID:   strings.TrimSpace(req.ClientID),
		AgentID:    strings.TrimSpace(req.AgentID),
		PropertyID: strings.TrimSpace(req.PropertyID),
		Date:       req.Date,
		TimeWindow: req.TimeWindow,
		Status:     StatusPending,
		Notes:      req.Notes,
	}
	if _, err := ParseDate(v.Date); err != nil {
		return nil, err
	}
	if _, err := NormalizeWindow(v.TimeWindow); err != nil {
		return nil, err
	}
	if tooLong(v.ClientID) || tooLong(v.AgentID) || tooLong(v.PropertyID) {
		return nil, ErrReferenceLen
	}

	unlock := s.locks.lock(v.AgentID)
	defer unlock()

	ctx, cancel := s.detach(ctx)
	defer cancel()

	err := s.runTx(ctx, func(ctx context.Context) error {
		date, _ := ParseDate(v.Date)
		snapshot, err := s.visits.ListByDate(ctx, date, v.AgentID)
		if err != nil {
			return err
		}
		if err := Place(snapshot, v); err != nil {
			return err
		}
		return s.visits.Create(ctx, v)
	})
	if err != nil {
		s.logWriteErr(err, "create", v)
		return nil, err
	}
	v.syncConfirmed()
	if s.metrics != nil {
		s.metrics.VisitsBooked.Inc()
	}
	s.logger.Info().Str("visit", v.ID.String()).Str("agent", v.AgentID).
		Str("date", v.Date).Str("window", v.TimeWindow).
		Str("by", auth.UserIDFromContext(ctx)).Msg("visit booked")
	s.scheduleRefresh()
	return v, nil
}

// Reschedule moves visit id to req's date and window. It issues exactly one
// store update on success, also when the visit is dropped onto its own slot,
// and none on failure.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, req RescheduleRequest) (*Visit, error) {
	v, err := s.reschedule(ctx, id, req)
	if s.metrics != nil {
		s.metrics.Reschedules.WithLabelValues(resultLabel(err)).Inc()
	}
	return v, err
}

func (s *Service) reschedule(ctx context.Context, id uuid.UUID, req RescheduleRequest) (*Visit, error) {
	existing, err := s.visits.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	date, err := ParseDate(req.Date)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(existing.AgentID)
	defer unlock()

	ctx, cancel := s.detach(ctx)
	defer cancel()

	var moved Visit
	err = s.runTx(ctx, func(ctx context.Context) error {
		current, err := s.visits.GetByID(ctx, id)
		if err != nil {
			return err
		}
		snapshot, err := s.visits.ListByDate(ctx, date, current.AgentID)
		if err != nil {
			return err
		}
		snapshot = withVisit(snapshot, *current)

		moved, err = Reschedule(snapshot, id, date, req.TimeWindow)
		if err != nil {
			return err
		}
		return s.visits.Update(ctx, &moved)
	})
	if err != nil {
		s.logWriteErr(err, "reschedule", existing)
		return nil, err
	}
	s.logger.Info().Str("visit", id.String()).Str("agent", moved.AgentID).
		Str("from", existing.Date+" "+existing.TimeWindow).
		Str("to", moved.Date+" "+moved.TimeWindow).
		Str("by", auth.UserIDFromContext(ctx)).Msg("visit rescheduled")
	s.scheduleRefresh()
	return &moved, nil
}

// UpdateStatus changes the status of a visit. Reviving a cancelled visit
// needs its window to still be free.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Visit, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	existing, err := s.visits.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(existing.AgentID)
	defer unlock()

	ctx, cancel := s.detach(ctx)
	defer cancel()

	var updated Visit
	err = s.runTx(ctx, func(ctx context.Context) error {
		current, err := s.visits.GetByID(ctx, id)
		if err != nil {
			return err
		}
		updated = *current
		updated.Status = status
		if !current.Occupies() && updated.Occupies() {
			snapshot, err := s.visits.ListByDate(ctx, current.Date, current.AgentID)
			if err != nil {
				return err
			}
			if err := Place(snapshot, &updated); err != nil {
				return err
			}
		}
		return s.visits.Update(ctx, &updated)
	})
	if err != nil {
		s.logWriteErr(err, "status", existing)
		return nil, err
	}
	updated.syncConfirmed()
	s.scheduleRefresh()
	return &updated, nil
}

func (s *Service) GetVisit(ctx context.Context, id uuid.UUID) (*Visit, error) {
	return s.visits.GetByID(ctx, id)
}

func (s *Service) ListVisits(ctx context.Context, f ListFilter, limit, offset int) ([]*Visit, int, error) {
	if f.DateFrom != "" {
		d, err := ParseDate(f.DateFrom)
		if err != nil {
			return nil, 0, err
		}
		f.DateFrom = d
	}
	if f.DateTo != "" {
		d, err := ParseDate(f.DateTo)
		if err != nil {
			return nil, 0, err
		}
		f.DateTo = d
	}
	f.AgentID = strings.TrimSpace(f.AgentID)
	return s.visits.List(ctx, f, limit, offset)
}

func (s *Service) DeleteVisit(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := s.detach(ctx)
	defer cancel()
	if err := s.visits.Delete(ctx, id); err != nil {
		return err
	}
	s.scheduleRefresh()
	return nil
}

// RefreshWeekGauge recounts the non-cancelled visits of the current week.
func (s *Service) RefreshWeekGauge(ctx context.Context) error {
	if s.metrics == nil {
		return nil
	}
	vs := ViewState{View: ViewWeek}
	vs.WeekStart, _ = WeekStart(s.Now().Format(DateLayout))
	from, to := vs.Range()
	items, _, err := s.visits.List(ctx, ListFilter{DateFrom: from, DateTo: to}, snapshotLimit, 0)
	if err != nil {
		return err
	}
	n := 0
	for _, v := range items {
		if v.Occupies() {
			n++
		}
	}
	s.metrics.WeekVisits.Set(float64(n))
	return nil
}

// Close runs any pending gauge refresh.
func (s *Service) Close() { s.refresh.Flush() }

func (s *Service) scheduleRefresh() {
	if s.metrics == nil {
		return
	}
	s.refresh.Trigger(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
		defer cancel()
		if err := s.RefreshWeekGauge(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("failed to refresh week gauge")
		}
	})
}

// detach keeps a write running when the caller goes away.
func (s *Service) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
}

func (s *Service) logWriteErr(err error, op string, v *Visit) {
	var conflict *ConflictError
	switch {
	case errors.As(err, &conflict):
		if s.metrics != nil {
			s.metrics.Conflicts.Inc()
		}
		s.logger.Info().Str("op", op).Str("agent", conflict.AgentID).
			Str("date", conflict.Date).Str("window", conflict.TimeWindow).
			Str("holder", conflict.HolderID.String()).Msg("visit slot conflict")
	case errors.Is(err, ErrNotFound), IsValidation(err):
	default:
		s.logger.Error().Err(err).Str("op", op).Str("visit", v.ID.String()).Msg("visit write failed")
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case IsValidation(err):
		return "invalid"
	default:
		return "error"
	}
}

// withVisit returns snapshot with v present exactly once, v's copy winning.
func withVisit(snapshot []Visit, v Visit) []Visit {
	out := make([]Visit, 0, len(snapshot)+1)
	for _, x := range snapshot {
		if x.ID != v.ID {
			out = append(out, x)
		}
	}
	return append(out, v)
}

func deref(items []*Visit) []Visit {
	out := make([]Visit, len(items))
	for i, v := range items {
		out[i] = *v
	}
	return out
}

// maxRefLen matches the VARCHAR(64) id columns of the visit table.
const maxRefLen = 64

func tooLong(s string) bool { return utf8.RuneCountInString(s) > maxRefLen }

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// agentLocks serializes check-then-write sequences per agent.
type agentLocks struct {
	mu    sync.Mutex
	byKey map[string]*agentLock
}

type agentLock struct {
	mu   sync.Mutex
	refs int
}

func (l *agentLocks) lock(agent string) (unlock func()) {
	l.mu.Lock()
	if l.byKey == nil {
		l.byKey = make(map[string]*agentLock)
	}
	al, ok := l.byKey[agent]
	if !ok {
		al = &agentLock{}
		l.byKey[agent] = al
	}
	al.refs++
	l.mu.Unlock()

	al.mu.Lock()
	return func() {
		al.mu.Unlock()
		l.mu.Lock()
		al.refs--
		if al.refs == 0 {
			delete(l.byKey, agent)
		}
		l.mu.Unlock()
	}
}
