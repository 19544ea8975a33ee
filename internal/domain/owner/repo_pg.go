package owner

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inmo/backoffice/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type ownerRepoPG struct{ pool *pgxpool.Pool }

func NewOwnerRepoPG(pool *pgxpool.Pool) OwnerRepository {
	return &ownerRepoPG{pool: pool}
}

func (r *ownerRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const ownerCols = `id, full_name, email, phone, status,
	to_char(exclusivity_end, 'YYYY-MM-DD'), to_char(next_follow_up, 'YYYY-MM-DD'),
	notes, created_at, updated_at`

func (r *ownerRepoPG) scanOwner(row pgx.Row) (*Owner, error) {
	var o Owner
	err := row.Scan(&o.ID, &o.FullName, &o.Email, &o.Phone, &o.Status,
		&o.ExclusivityEnd, &o.NextFollowUp,
		&o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &o, err
}

func (r *ownerRepoPG) Create(ctx context.Context, o *Owner) error {
	o.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO owner (id, full_name, email, phone, status, exclusivity_end, next_follow_up, notes)
		VALUES ($1, $2, $3, $4, $5, $6::date, $7::date, $8)
		RETURNING created_at, updated_at`,
		o.ID, o.FullName, o.Email, o.Phone, o.Status, o.ExclusivityEnd, o.NextFollowUp, o.Notes,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
}

func (r *ownerRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Owner, error) {
	return r.scanOwner(r.conn(ctx).QueryRow(ctx, `SELECT `+ownerCols+` FROM owner WHERE id = $1`, id))
}

func (r *ownerRepoPG) Update(ctx context.Context, o *Owner) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE owner SET full_name=$2, email=$3, phone=$4, status=$5,
			exclusivity_end=$6::date, next_follow_up=$7::date, notes=$8, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		o.ID, o.FullName, o.Email, o.Phone, o.Status, o.ExclusivityEnd, o.NextFollowUp, o.Notes,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *ownerRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM owner WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var ownerSearchParams = map[string]db.Filter{
	"status":         {Kind: db.FilterExact, Column: "status"},
	"q":              {Kind: db.FilterContains, Column: "concat_ws(' ', full_name, email, phone)"},
	"name":           {Kind: db.FilterContains, Column: "full_name"},
	"exclusivity_to": {Kind: db.FilterDateTo, Column: "exclusivity_end"},
	"follow_up_to":   {Kind: db.FilterDateTo, Column: "next_follow_up"},
}

func (r *ownerRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Owner, int, error) {
	qb := db.NewSearchQuery("owner", ownerCols)
	qb.ApplyParams(params, ownerSearchParams)
	qb.ApplySort(params["sort"], "full_name ASC", ownerSearchParams)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, qb.DataSQL(), qb.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Owner
	for rows.Next() {
		o, err := r.scanOwner(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, o)
	}
	return items, total, rows.Err()
}
