package task

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/inmo/backoffice/internal/platform/kpi"
)

// kpiLimit bounds the tasks loaded for a dashboard rollup.
const kpiLimit = 10000

type Service struct {
	tasks  TaskRepository
	logger zerolog.Logger
	loc    *time.Location
	now    func() time.Time
}

func NewService(tasks TaskRepository, logger zerolog.Logger) *Service {
	return &Service{tasks: tasks, logger: logger, loc: time.UTC, now: time.Now}
}

// SetLocation sets the zone "today" is computed in.
func (s *Service) SetLocation(loc *time.Location) {
	if loc != nil {
		s.loc = loc
	}
}

// SetClock replaces the wall clock, for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) Now() time.Time { return s.now().In(s.loc) }

var validTaskStatuses = map[string]bool{
	StatusPending:    true,
	StatusInProgress: true,
	StatusDone:       true,
}

var validTaskPriorities = map[string]bool{
	PriorityLow:    true,
	PriorityMedium: true,
	PriorityHigh:   true,
}

func (s *Service) validate(t *Task) error {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return fmt.Errorf("title is required")
	}
	if utf8.RuneCountInString(t.Title) > 255 {
		return fmt.Errorf("title is limited to 255 characters")
	}
	if t.AssigneeID != nil && utf8.RuneCountInString(*t.AssigneeID) > 64 {
		return fmt.Errorf("assignee_id is limited to 64 characters")
	}
	if t.PropertyID != nil && utf8.RuneCountInString(*t.PropertyID) > 64 {
		return fmt.Errorf("property_id is limited to 64 characters")
	}
	if !validTaskStatuses[t.Status] {
		return fmt.Errorf("invalid status: %s", t.Status)
	}
	if !validTaskPriorities[t.Priority] {
		return fmt.Errorf("invalid priority: %s", t.Priority)
	}
	if t.DueDate != nil {
		d, err := time.Parse(DateLayout, strings.TrimSpace(*t.DueDate))
		if err != nil {
			return fmt.Errorf("invalid due_date: %s", *t.DueDate)
		}
		norm := d.Format(DateLayout)
		t.DueDate = &norm
	}
	return nil
}

func (s *Service) CreateTask(ctx context.Context, t *Task) error {
	if t.Status == "" {
		t.Status = StatusPending
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if err := s.validate(t); err != nil {
		return err
	}
	if err := s.tasks.Create(ctx, t); err != nil {
		s.logger.Error().Err(err).Msg("failed to create task")
		return err
	}
	return nil
}

func (s *Service) GetTask(ctx context.Context, id uuid.UUID) (*Task, error) {
	return s.tasks.GetByID(ctx, id)
}

func (s *Service) UpdateTask(ctx context.Context, t *Task) error {
	existing, err := s.tasks.GetByID(ctx, t.ID)
	if err != nil {
		return err
	}
	if t.Status == "" {
		t.Status = existing.Status
	}
	if t.Priority == "" {
		t.Priority = existing.Priority
	}
	if err := s.validate(t); err != nil {
		return err
	}
	if existing.Status != StatusDone && t.Status == StatusDone {
		s.logger.Info().Str("task", t.ID.String()).Msg("task completed")
	}
	return s.tasks.Update(ctx, t)
}

func (s *Service) DeleteTask(ctx context.Context, id uuid.UUID) error {
	return s.tasks.Delete(ctx, id)
}

func (s *Service) ListTasksByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*Task, int, error) {
	return s.tasks.ListByOwner(ctx, ownerID, limit, offset)
}

func (s *Service) SearchTasks(ctx context.Context, params map[string]string, limit, offset int) ([]*Task, int, error) {
	if err := checkFilters(params); err != nil {
		return nil, 0, err
	}
	return s.tasks.Search(ctx, params, limit, offset)
}

// checkFilters rejects date filters the database would fail to cast.
func checkFilters(params map[string]string) error {
	for _, k := range []string{"due_from", "due_to"} {
		v := params[k]
		if v == "" {
			continue
		}
		if _, err := time.Parse(DateLayout, v); err != nil {
			return fmt.Errorf("%w: %s must be YYYY-MM-DD, got %q", ErrInvalidFilter, k, v)
		}
	}
	return nil
}

func (s *Service) all(ctx context.Context, params map[string]string) ([]*Task, error) {
	if err := checkFilters(params); err != nil {
		return nil, err
	}
	items, _, err := s.tasks.Search(ctx, params, kpiLimit, 0)
	return items, err
}

// KPI rolls up the tasks matching params.
func (s *Service) KPI(ctx context.Context, params map[string]string) (kpi.Snapshot, error) {
	items, err := s.all(ctx, params)
	if err != nil {
		return kpi.Snapshot{}, err
	}
	return kpi.Summarize(items, s.Now()), nil
}

// Board groups the tasks matching params into kanban columns.
func (s *Service) Board(ctx context.Context, params map[string]string) ([]Column, error) {
	items, err := s.all(ctx, params)
	if err != nil {
		return nil, err
	}
	return GroupByState(items, s.Now()), nil
}
