package agenda

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inmo/backoffice/internal/platform/db"
)

// uniqueViolation is the SQLSTATE raised by visit_slot_uniq.
const uniqueViolation = "23505"

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type visitRepoPG struct{ pool *pgxpool.Pool }

func NewVisitRepoPG(pool *pgxpool.Pool) VisitRepository {
	return &visitRepoPG{pool: pool}
}

func (r *visitRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const visitCols = `id, client_id, agent_id, property_id,
	to_char(visit_date, 'YYYY-MM-DD'), time_window, status, notes,
	created_at, updated_at`

func (r *visitRepoPG) scanVisit(row pgx.Row) (*Visit, error) {
	var v Visit
	err := row.Scan(&v.ID, &v.ClientID, &v.AgentID, &v.PropertyID,
		&v.Date, &v.TimeWindow, &v.Status, &v.Notes,
		&v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	v.syncConfirmed()
	return &v, nil
}

func (r *visitRepoPG) Create(ctx context.Context, v *Visit) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO visit (id, client_id, agent_id, property_id, visit_date, time_window, status, notes)
		VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8)
		RETURNING created_at, updated_at`,
		v.ID, v.ClientID, v.AgentID, v.PropertyID, v.Date, v.TimeWindow, v.Status, v.Notes,
	).Scan(&v.CreatedAt, &v.UpdatedAt)
	return mapWriteErr(err, v)
}

func (r *visitRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Visit, error) {
	return r.scanVisit(r.conn(ctx).QueryRow(ctx, `SELECT `+visitCols+` FROM visit WHERE id = $1`, id))
}

func (r *visitRepoPG) Update(ctx context.Context, v *Visit) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE visit SET client_id=$2, agent_id=$3, property_id=$4, visit_date=$5::date,
			time_window=$6, status=$7, notes=$8, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		v.ID, v.ClientID, v.AgentID, v.PropertyID, v.Date, v.TimeWindow, v.Status, v.Notes,
	).Scan(&v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return mapWriteErr(err, v)
}

func (r *visitRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM visit WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var visitFilters = map[string]db.Filter{
	"dateFrom": {Kind: db.FilterDateFrom, Column: "visit_date"},
	"dateTo":   {Kind: db.FilterDateTo, Column: "visit_date"},
	"agentId":  {Kind: db.FilterExact, Column: "agent_id"},
}

func (r *visitRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Visit, int, error) {
	qb := db.NewSearchQuery("visit", visitCols)
	qb.ApplyParams(map[string]string{
		"dateFrom": f.DateFrom,
		"dateTo":   f.DateTo,
		"agentId":  f.AgentID,
	}, visitFilters)
	qb.OrderBy("visit_date, time_window, agent_id")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, qb.DataSQL(), qb.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Visit
	for rows.Next() {
		v, err := r.scanVisit(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, v)
	}
	return items, total, rows.Err()
}

func (r *visitRepoPG) ListByDate(ctx context.Context, date, agentID string) ([]Visit, error) {
	items, _, err := r.List(ctx, ListFilter{DateFrom: date, DateTo: date, AgentID: agentID}, maxDayVisits, 0)
	if err != nil {
		return nil, err
	}
	return deref(items), nil
}

// maxDayVisits bounds a single-day snapshot. A day holds at most one
// occupying visit per agent and window, plus cancelled history.
const maxDayVisits = 10000

// mapWriteErr turns a violation of the slot index into a ConflictError.
func mapWriteErr(err error, v *Visit) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return &ConflictError{Date: v.Date, TimeWindow: v.TimeWindow, AgentID: v.AgentID}
	}
	return err
}
