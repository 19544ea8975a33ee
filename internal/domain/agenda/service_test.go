package agenda

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/inmo/backoffice/internal/platform/auth"
	"github.com/inmo/backoffice/internal/platform/metrics"
)

// -- Mock Repository --

type mockVisitRepo struct {
	mu        sync.Mutex
	store     map[uuid.UUID]*Visit
	updates   int
	updateErr error
}

func newMockVisitRepo() *mockVisitRepo {
	return &mockVisitRepo{store: make(map[uuid.UUID]*Visit)}
}

func (m *mockVisitRepo) Create(_ context.Context, v *Visit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	cp := *v
	m.store[v.ID] = &cp
	return nil
}

func (m *mockVisitRepo) GetByID(_ context.Context, id uuid.UUID) (*Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *mockVisitRepo) Update(_ context.Context, v *Visit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.store[v.ID]; !ok {
		return ErrNotFound
	}
	cp := *v
	m.store[v.ID] = &cp
	return nil
}

func (m *mockVisitRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *mockVisitRepo) List(_ context.Context, f ListFilter, limit, offset int) ([]*Visit, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Visit
	for _, v := range m.store {
		if f.DateFrom != "" && v.Date < f.DateFrom {
			continue
		}
		if f.DateTo != "" && v.Date > f.DateTo {
			continue
		}
		if f.AgentID != "" && v.AgentID != f.AgentID {
			continue
		}
		cp := *v
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].TimeWindow < out[j].TimeWindow
	})
	total := len(out)
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (m *mockVisitRepo) ListByDate(ctx context.Context, date, agentID string) ([]Visit, error) {
	items, _, _ := m.List(ctx, ListFilter{DateFrom: date, DateTo: date, AgentID: agentID}, 1000, 0)
	return deref(items), nil
}

func (m *mockVisitRepo) updateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updates
}

var fixedNow = time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

func newTestService() (*Service, *mockVisitRepo) {
	repo := newMockVisitRepo()
	svc := NewService(repo, zerolog.Nop())
	svc.SetClock(func() time.Time { return fixedNow })
	return svc, repo
}

func mustCreate(t *testing.T, svc *Service, date, window, agent string) *Visit {
	t.Helper()
	v, err := svc.CreateVisit(context.Background(), CreateRequest{Date: date, TimeWindow: window, AgentID: agent})
	if err != nil {
		t.Fatalf("create %s %s %s: %v", date, window, agent, err)
	}
	return v
}

// -- Create --

func TestCreateVisit(t *testing.T) {
	svc, _ := newTestService()
	v := mustCreate(t, svc, "2024-03-05", "09:00-10:00", "ana")
	if v.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
	if v.Status != StatusPending || v.Confirmed {
		t.Errorf("expected pending unconfirmed visit, got %+v", v)
	}
	if v.TimeWindow != "09:00 - 10:00" {
		t.Errorf("expected canonical window, got %q", v.TimeWindow)
	}
}

func TestCreateVisit_Conflict(t *testing.T) {
	svc, _ := newTestService()
	first := mustCreate(t, svc, "2024-03-05", "09:00 - 10:00", "ana")

	_, err := svc.CreateVisit(context.Background(), CreateRequest{Date: "2024-03-05", TimeWindow: "09:00-10:00", AgentID: "ana"})
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.HolderID != first.ID {
		t.Errorf("expected holder %s, got %s", first.ID, conflict.HolderID)
	}

	if _, err := svc.CreateVisit(context.Background(), CreateRequest{Date: "2024-03-05", TimeWindow: "09:00-10:00", AgentID: "luis"}); err != nil {
		t.Errorf("other agent should book the same window, got %v", err)
	}
}

func TestCreateVisit_Validation(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.CreateVisit(context.Background(), CreateRequest{Date: "2024-13-01", TimeWindow: "09:00 - 10:00"}); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("expected ErrInvalidDate, got %v", err)
	}
	if _, err := svc.CreateVisit(context.Background(), CreateRequest{Date: "2024-03-05", TimeWindow: "14:00 - 15:00"}); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("expected ErrInvalidWindow, got %v", err)
	}
}

func TestCreateVisit_ReferenceTooLong(t *testing.T) {
	svc, repo := newTestService()
	long := strings.Repeat("a", 65)
	reqs := []CreateRequest{
		{Date: "2024-03-05", TimeWindow: "09:00 - 10:00", AgentID: long},
		{Date: "2024-03-05", TimeWindow: "09:00 - 10:00", ClientID: long},
		{Date: "2024-03-05", TimeWindow: "09:00 - 10:00", PropertyID: long},
	}
	for _, req := range reqs {
		_, err := svc.CreateVisit(context.Background(), req)
		if !errors.Is(err, ErrReferenceLen) {
			t.Errorf("expected ErrReferenceLen, got %v", err)
		}
		if !IsValidation(err) {
			t.Errorf("expected a validation error, got %v", err)
		}
	}
	if len(repo.store) != 0 {
		t.Errorf("expected nothing stored, got %d visits", len(repo.store))
	}

	// 64 multi-byte characters still fit the column.
	if _, err := svc.CreateVisit(context.Background(), CreateRequest{
		Date: "2024-03-05", TimeWindow: "09:00 - 10:00", AgentID: strings.Repeat("ñ", 64),
	}); err != nil {
		t.Errorf("expected 64 characters to be accepted, got %v", err)
	}
}

func TestCreateAndReschedule_LogActingUser(t *testing.T) {
	var buf bytes.Buffer
	repo := newMockVisitRepo()
	svc := NewService(repo, zerolog.New(&buf))
	svc.SetClock(func() time.Time { return fixedNow })
	ctx := auth.WithUser(context.Background(), "user-42", []string{auth.RoleAgent})

	v, err := svc.CreateVisit(ctx, CreateRequest{Date: "2024-03-05", TimeWindow: "09:00 - 10:00", AgentID: "ana"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Reschedule(ctx, v.ID, RescheduleRequest{Date: "2024-03-06", TimeWindow: "10:00 - 11:00"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), buf.String())
	}
	for _, line := range lines {
		if !strings.Contains(line, `"by":"user-42"`) {
			t.Errorf("expected acting user in %s", line)
		}
	}
}

// -- Reschedule --

func TestReschedule_OneUpdateOnSuccess(t *testing.T) {
	svc, repo := newTestService()
	v := mustCreate(t, svc, "2024-03-05", "09:00 - 10:00", "ana")

	moved, err := svc.Reschedule(context.Background(), v.ID, RescheduleRequest{Date: "2024-03-06", TimeWindow: "17:00-18:00"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if moved.Date != "2024-03-06" || moved.TimeWindow != "17:00 - 18:00" {
		t.Errorf("unexpected result: %+v", moved)
	}
	if n := repo.updateCount(); n != 1 {
		t.Errorf("expected exactly 1 update, got %d", n)
	}
	stored, _ := repo.GetByID(context.Background(), v.ID)
	if stored.Date != "2024-03-06" {
		t.Errorf("store not updated: %+v", stored)
	}
}

func TestReschedule_SameSlotStillWritesOnce(t *testing.T) {
	svc, repo := newTestService()
	v := mustCreate(t, svc, "2024-03-05", "12:00 - 13:00", "ana")

	if _, err := svc.Reschedule(context.Background(), v.ID, RescheduleRequest{Date: v.Date, TimeWindow: v.TimeWindow}); err != nil {
		t.Fatalf("self-drop should succeed, got %v", err)
	}
	if n := repo.updateCount(); n != 1 {
		t.Errorf("expected exactly 1 update, got %d", n)
	}
}

func TestReschedule_ConflictLeavesStoreUntouched(t *testing.T) {
	svc, repo := newTestService()
	mustCreate(t, svc, "2024-03-05", "09:00 - 10:00", "ana")
	b := mustCreate(t, svc, "2024-03-05", "10:00 - 11:00", "ana")

	_, err := svc.Reschedule(context.Background(), b.ID, RescheduleRequest{Date: "2024-03-05", TimeWindow: "09:00 - 10:00"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if n := repo.updateCount(); n != 0 {
		t.Errorf("expected no update, got %d", n)
	}
	stored, _ := repo.GetByID(context.Background(), b.ID)
	if stored.TimeWindow != "10:00 - 11:00" {
		t.Errorf("stored visit changed: %+v", stored)
	}
}

func TestReschedule_NotFound(t *testing.T) {
	svc, repo := newTestService()
	_, err := svc.Reschedule(context.Background(), uuid.New(), RescheduleRequest{Date: "2024-03-05", TimeWindow: "09:00 - 10:00"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if repo.updateCount() != 0 {
		t.Error("expected no update")
	}
}

func TestReschedule_StoreFailureNoRetry(t *testing.T) {
	svc, repo := newTestService()
	v := mustCreate(t, svc, "2024-03-05", "09:00 - 10:00", "ana")
	repo.updateErr = errors.New("connection reset")

	if _, err := svc.Reschedule(context.Background(), v.ID, RescheduleRequest{Date: "2024-03-06", TimeWindow: "09:00 - 10:00"}); err == nil {
		t.Fatal("expected store error")
	}
	if n := repo.updateCount(); n != 1 {
		t.Errorf("expected a single attempt, got %d", n)
	}
	stored, _ := repo.GetByID(context.Background(), v.ID)
	if stored.Date != "2024-03-05" {
		t.Errorf("stored visit changed: %+v", stored)
	}
}

func TestReschedule_SurvivesCallerCancellation(t *testing.T) {
	svc, repo := newTestService()
	v := mustCreate(t, svc, "2024-03-05", "09:00 - 10:00", "ana")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var sawCancelled bool
	svc.SetTxRunner(func(ctx context.Context, fn func(ctx context.Context) error) error {
		sawCancelled = ctx.Err() != nil
		return fn(ctx)
	})
	if _, err := svc.Reschedule(ctx, v.ID, RescheduleRequest{Date: "2024-03-06", TimeWindow: "09:00 - 10:00"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sawCancelled {
		t.Error("write ran with the caller's cancelled context")
	}
	if repo.updateCount() != 1 {
		t.Error("expected the move to be persisted")
	}
}

func TestReschedule_ConcurrentMovesOnlyOneWins(t *testing.T) {
	svc, _ := newTestService()
	var ids []uuid.UUID
	for _, w := range []string{"09:00 - 10:00", "10:00 - 11:00", "11:00 - 12:00", "12:00 - 13:00"} {
		ids = append(ids, mustCreate(t, svc, "2024-03-05", w, "ana").ID)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := svc.Reschedule(context.Background(), id, RescheduleRequest{Date: "2024-03-06", TimeWindow: "16:00 - 17:00"})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()
	if wins != 1 {
		t.Errorf("expected exactly one winner, got %d", wins)
	}
}

func TestReschedule_Metrics(t *testing.T) {
	svc, _ := newTestService()
	m := metrics.NewMetrics("test", nil)
	svc.SetMetrics(m)
	defer svc.Close()

	mustCreate(t, svc, "2024-03-05", "09:00 - 10:00", "ana")
	b := mustCreate(t, svc, "2024-03-05", "10:00 - 11:00", "ana")
	_, _ = svc.Reschedule(context.Background(), b.ID, RescheduleRequest{Date: "2024-03-05", TimeWindow: "09:00 - 10:00"})

	if got := testutil.ToFloat64(m.Reschedules.WithLabelValues("conflict")); got != 1 {
		t.Errorf("expected 1 conflict reschedule, got %v", got)
	}
	if got := testutil.ToFloat64(m.Conflicts); got != 1 {
		t.Errorf("expected 1 conflict, got %v", got)
	}
	if got := testutil.ToFloat64(m.VisitsBooked); got != 2 {
		t.Errorf("expected 2 bookings, got %v", got)
	}

	svc.Close()
	if got := testutil.ToFloat64(m.WeekVisits); got != 2 {
		t.Errorf("expected week gauge 2, got %v", got)
	}
}

// -- Status --

func TestUpdateStatus(t *testing.T) {
	svc, _ := newTestService()
	v := mustCreate(t, svc, "2024-03-05", "09:00 - 10:00", "ana")

	got, err := svc.UpdateStatus(context.Background(), v.ID, StatusConfirmed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Confirmed {
		t.Error("expected confirmed flag")
	}
	if _, err := svc.UpdateStatus(context.Background(), v.ID, "archived"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestUpdateStatus_RevivingCancelledNeedsFreeSlot(t *testing.T) {
	svc, _ := newTestService()
	a := mustCreate(t, svc, "2024-03-05", "09:00 - 10:00", "ana")
	if _, err := svc.UpdateStatus(context.Background(), a.ID, StatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	mustCreate(t, svc, "2024-03-05", "09:00 - 10:00", "ana")

	if _, err := svc.UpdateStatus(context.Background(), a.ID, StatusPending); !errors.Is(err, ErrConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
}

// -- Queries --

func TestAvailability(t *testing.T) {
	svc, _ := newTestService()
	mustCreate(t, svc, "2024-03-05", "09:00 - 10:00", "ana")

	a, err := svc.Availability(context.Background(), "2024-03-05", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a.Available) != 7 || len(a.Occupied) != 1 {
		t.Errorf("expected 7 free / 1 held, got %d / %d", len(a.Available), len(a.Occupied))
	}
	if _, err := svc.Availability(context.Background(), "yesterday", ""); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("expected ErrInvalidDate, got %v", err)
	}
}

func TestCalendar(t *testing.T) {
	svc, _ := newTestService()
	mustCreate(t, svc, "2024-03-05", "09:00 - 10:00", "ana")
	mustCreate(t, svc, "2024-03-12", "09:00 - 10:00", "ana")

	grid, err := svc.Calendar(context.Background(), ViewState{View: ViewWeek, WeekStart: "2024-03-04", Day: "2024-03-04"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(grid.Columns) != 7 {
		t.Fatalf("expected 7 columns, got %d", len(grid.Columns))
	}
	if !grid.Columns[0].Day.IsToday {
		t.Error("expected monday to be today")
	}
	if n := len(grid.Columns[1].Events); n != 1 {
		t.Errorf("expected 1 event on tuesday, got %d", n)
	}
}

func TestIsPast_UsesConfiguredZone(t *testing.T) {
	svc, _ := newTestService()
	if !svc.IsPast("2024-03-03") {
		t.Error("yesterday should be past")
	}
	if svc.IsPast("2024-03-04") {
		t.Error("today should not be past")
	}
}

func TestDeleteVisit(t *testing.T) {
	svc, _ := newTestService()
	v := mustCreate(t, svc, "2024-03-05", "09:00 - 10:00", "ana")
	if err := svc.DeleteVisit(context.Background(), v.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.GetVisit(context.Background(), v.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
