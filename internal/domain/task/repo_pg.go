package task

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

type taskRepoPG struct{ pool *pgxpool.Pool }

func NewTaskRepoPG(pool *pgxpool.Pool) TaskRepository {
	return &taskRepoPG{pool: pool}
}

func (r *taskRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const taskCols = `id, title, description, status, priority,
	to_char(due_date, 'YYYY-MM-DD'), assignee_id, owner_id, property_id,
	created_at, updated_at`

func (r *taskRepoPG) scanTask(row pgx.Row) (*Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority,
		&t.DueDate, &t.AssigneeID, &t.OwnerID, &t.PropertyID,
		&t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &t, err
}

func (r *taskRepoPG) Create(ctx context.Context, t *Task) error {
	t.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO task (id, title, description, status, priority, due_date,
			assignee_id, owner_id, property_id)
		VALUES ($1, $2, $3, $4, $5, $6::date, $7, $8, $9)
		RETURNING created_at, updated_at`,
		t.ID, t.Title, t.Description, t.Status, t.Priority, t.DueDate,
		t.AssigneeID, t.OwnerID, t.PropertyID,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *taskRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Task, error) {
	return r.scanTask(r.conn(ctx).QueryRow(ctx, `SELECT `+taskCols+` FROM task WHERE id = $1`, id))
}

func (r *taskRepoPG) Update(ctx context.Context, t *Task) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE task SET title=$2, description=$3, status=$4, priority=$5, due_date=$6::date,
			assignee_id=$7, owner_id=$8, property_id=$9, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		t.ID, t.Title, t.Description, t.Status, t.Priority, t.DueDate,
		t.AssigneeID, t.OwnerID, t.PropertyID,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *taskRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM task WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *taskRepoPG) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*Task, int, error) {
	return r.Search(ctx, map[string]string{"owner_id": ownerID.String()}, limit, offset)
}

var taskSearchParams = map[string]db.Filter{
	"status":      {Kind: db.FilterExact, Column: "status"},
	"priority":    {Kind: db.FilterExact, Column: "priority"},
	"assignee_id": {Kind: db.FilterExact, Column: "assignee_id"},
	"owner_id":    {Kind: db.FilterExact, Column: "owner_id::text"},
	"property_id": {Kind: db.FilterExact, Column: "property_id"},
	"q":           {Kind: db.FilterContains, Column: "title"},
	"due_from":    {Kind: db.FilterDateFrom, Column: "due_date"},
	"due_to":      {Kind: db.FilterDateTo, Column: "due_date"},
}

func (r *taskRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Task, int, error) {
	qb := db.NewSearchQuery("task", taskCols)
	qb.ApplyParams(params, taskSearchParams)
	qb.ApplySort(params["sort"], "due_date ASC NULLS LAST, created_at DESC", taskSearchParams)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, qb.DataSQL(), qb.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Task
	for rows.Next() {
		t, err := r.scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, rows.Err()
}
