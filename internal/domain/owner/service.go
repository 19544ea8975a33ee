package owner

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/inmo/backoffice/internal/platform/kpi"
)

// scanLimit bounds the owners loaded for a rollup.
const scanLimit = 10000

type Service struct {
	owners OwnerRepository
	logger zerolog.Logger
	loc    *time.Location
	now    func() time.Time
}

func NewService(owners OwnerRepository, logger zerolog.Logger) *Service {
	return &Service{owners: owners, logger: logger, loc: time.UTC, now: time.Now}
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

var validOwnerStatuses = map[string]bool{
	StatusProspect: true,
	StatusActive:   true,
	StatusInactive: true,
}

func (s *Service) validate(o *Owner) error {
	o.FullName = strings.TrimSpace(o.FullName)
	if o.FullName == "" {
		return fmt.Errorf("full_name is required")
	}
	if utf8.RuneCountInString(o.FullName) > 255 {
		return fmt.Errorf("full_name is limited to 255 characters")
	}
	if o.Phone != nil && utf8.RuneCountInString(*o.Phone) > 64 {
		return fmt.Errorf("phone is limited to 64 characters")
	}
	if !validOwnerStatuses[o.Status] {
		return fmt.Errorf("invalid status: %s", o.Status)
	}
	if o.Email != nil {
		e := strings.TrimSpace(*o.Email)
		if e == "" {
			o.Email = nil
		} else if _, err := mail.ParseAddress(e); err != nil {
			return fmt.Errorf("invalid email: %s", *o.Email)
		} else if utf8.RuneCountInString(e) > 255 {
			return fmt.Errorf("email is limited to 255 characters")
		} else {
			o.Email = &e
		}
	}
	var err error
	if o.ExclusivityEnd, err = normalizeDate("exclusivity_end", o.ExclusivityEnd); err != nil {
		return err
	}
	if o.NextFollowUp, err = normalizeDate("next_follow_up", o.NextFollowUp); err != nil {
		return err
	}
	return nil
}

func normalizeDate(field string, s *string) (*string, error) {
	if s == nil {
		return nil, nil
	}
	raw := strings.TrimSpace(*s)
	if raw == "" {
		return nil, nil
	}
	d, err := time.Parse(DateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %s", field, *s)
	}
	norm := d.Format(DateLayout)
	return &norm, nil
}

func (s *Service) CreateOwner(ctx context.Context, o *Owner) error {
	if o.Status == "" {
		o.Status = StatusProspect
	}
	if err := s.validate(o); err != nil {
		return err
	}
	if err := s.owners.Create(ctx, o); err != nil {
		s.logger.Error().Err(err).Msg("failed to create owner")
		return err
	}
	return nil
}

func (s *Service) GetOwner(ctx context.Context, id uuid.UUID) (*Owner, error) {
	return s.owners.GetByID(ctx, id)
}

func (s *Service) UpdateOwner(ctx context.Context, o *Owner) error {
	existing, err := s.owners.GetByID(ctx, o.ID)
	if err != nil {
		return err
	}
	if o.Status == "" {
		o.Status = existing.Status
	}
	if err := s.validate(o); err != nil {
		return err
	}
	return s.owners.Update(ctx, o)
}

func (s *Service) DeleteOwner(ctx context.Context, id uuid.UUID) error {
	return s.owners.Delete(ctx, id)
}

func (s *Service) SearchOwners(ctx context.Context, params map[string]string, limit, offset int) ([]*Owner, int, error) {
	if err := checkFilters(params); err != nil {
		return nil, 0, err
	}
	return s.owners.Search(ctx, params, limit, offset)
}

// checkFilters rejects date filters the database would fail to cast.
func checkFilters(params map[string]string) error {
	for _, k := range []string{"exclusivity_to", "follow_up_to"} {
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

// KPI rolls up follow-up due dates of the owners matching params.
func (s *Service) KPI(ctx context.Context, params map[string]string) (kpi.Snapshot, error) {
	if err := checkFilters(params); err != nil {
		return kpi.Snapshot{}, err
	}
	items, _, err := s.owners.Search(ctx, params, scanLimit, 0)
	if err != nil {
		return kpi.Snapshot{}, err
	}
	return kpi.Summarize(items, s.Now()), nil
}

// ExpiringExclusivities lists owners whose exclusivity ends within
// withinDays, soonest first. A non-positive window uses the default.
func (s *Service) ExpiringExclusivities(ctx context.Context, withinDays int) ([]*Owner, error) {
	if withinDays <= 0 {
		withinDays = DefaultExclusivityWindow
	}
	now := s.Now()
	to := kpi.StartOfDay(now).AddDate(0, 0, withinDays).Format(DateLayout)
	items, _, err := s.owners.Search(ctx, map[string]string{"exclusivity_to": to}, scanLimit, 0)
	if err != nil {
		return nil, err
	}
	out := make([]*Owner, 0, len(items))
	for _, o := range items {
		if ExclusivityExpiringSoon(o, now, withinDays) {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return *out[i].ExclusivityEnd < *out[j].ExclusivityEnd
	})
	return out, nil
}
