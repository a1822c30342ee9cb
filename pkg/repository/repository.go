// Package repository implements the data-access layer shared by every
// entity of the service: a generic CRUD contract and one PostgreSQL
// implementation on top of pgx.
//
// Every operation runs in its own transaction on a connection borrowed from
// the pool. The transaction is committed or rolled back, and the connection
// returned, before the operation returns.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"push-notification-service/pkg/metrics"
	"push-notification-service/pkg/otel"
)

// Repository is the CRUD contract over one entity type T, created from C
// and partially updated from U.
type Repository[T, C, U any] interface {
	AddOne(ctx context.Context, create C) (int64, error)
	FindAll(ctx context.Context) ([]T, error)
	FindByID(ctx context.Context, id int64) (T, error)
	FindRandom(ctx context.Context) (T, error)
	EditOne(ctx context.Context, id int64, update U) (T, error)
	DeleteOne(ctx context.Context, id int64) (bool, error)
}

// DB is the part of *pgxpool.Pool the repository needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Mapper binds SQLRepository to a table.
type Mapper[T, C, U any] interface {
	Table() string
	// Columns lists the selected columns in Scan order. The primary key
	// column must be named "id".
	Columns() []string
	Scan(row pgx.Row) (T, error)
	// InsertValues returns the columns and values to insert; columns left
	// out take their database default.
	InsertValues(create C) ([]string, []any)
	// UpdateValues returns only the columns that should change.
	UpdateValues(update U) ([]string, []any)
}

// Operation names, used in errors, metrics, spans and logs.
const (
	OpAddOne     = "add_one"
	OpFindAll    = "find_all"
	OpFindByID   = "find_by_id"
	OpFindRandom = "find_random"
	OpEditOne    = "edit_one"
	OpDeleteOne  = "delete_one"
)

// SQLRepository implements Repository with pgx.
type SQLRepository[T, C, U any] struct {
	db     DB
	mapper Mapper[T, C, U]
	logger *zap.Logger

	table   string
	columns string
}

// New returns a SQLRepository for the table described by mapper.
func New[T, C, U any](db DB, mapper Mapper[T, C, U], logger *zap.Logger) *SQLRepository[T, C, U] {
	return &SQLRepository[T, C, U]{
		db:      db,
		mapper:  mapper,
		logger:  logger.With(zap.String("table", mapper.Table())),
		table:   mapper.Table(),
		columns: strings.Join(mapper.Columns(), ", "),
	}
}

// AddOne inserts a row and returns its generated id.
func (r *SQLRepository[T, C, U]) AddOne(ctx context.Context, create C) (int64, error) {
	cols, vals := r.mapper.InsertValues(create)
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		r.table, strings.Join(cols, ", "), placeholders(1, len(cols)),
	)

	var id int64
	err := r.run(ctx, OpAddOne, func(ctx context.Context, tx pgx.Tx) error {
		return tx.QueryRow(ctx, query, vals...).Scan(&id)
	})
	if err != nil {
		return 0, err
	}

	r.logger.Debug("Row inserted", zap.Int64("id", id))
	return id, nil
}

// FindAll returns every row in storage order. An empty table yields an
// empty, non-nil slice.
func (r *SQLRepository[T, C, U]) FindAll(ctx context.Context) ([]T, error) {
	query := fmt.Sprintf("SELECT %s FROM %s", r.columns, r.table)

	items := make([]T, 0)
	err := r.run(ctx, OpFindAll, func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			item, err := r.mapper.Scan(rows)
			if err != nil {
				return err
			}
			items = append(items, item)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// FindByID returns the row with the given id or ErrNotFound.
func (r *SQLRepository[T, C, U]) FindByID(ctx context.Context, id int64) (T, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", r.columns, r.table)
	return r.queryOne(ctx, OpFindByID, query, id)
}

// FindRandom returns one row picked uniformly at random or ErrNotFound when
// the table is empty.
func (r *SQLRepository[T, C, U]) FindRandom(ctx context.Context) (T, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY random() LIMIT 1", r.columns, r.table)
	return r.queryOne(ctx, OpFindRandom, query)
}

// EditOne applies update to the row with the given id and returns the row
// as stored afterwards. An update without fields returns the current row.
func (r *SQLRepository[T, C, U]) EditOne(ctx context.Context, id int64, update U) (T, error) {
	cols, vals := r.mapper.UpdateValues(update)
	if len(cols) == 0 {
		query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", r.columns, r.table)
		return r.queryOne(ctx, OpEditOne, query, id)
	}

	sets := make([]string, len(cols))
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", col, i+2)
	}
	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE id = $1 RETURNING %s",
		r.table, strings.Join(sets, ", "), r.columns,
	)

	args := append([]any{id}, vals...)
	item, err := r.queryOne(ctx, OpEditOne, query, args...)
	if err != nil {
		return item, err
	}

	r.logger.Debug("Row updated", zap.Int64("id", id), zap.Strings("columns", cols))
	return item, nil
}

// DeleteOne removes the row with the given id. It reports false, without an
// error, when no such row exists.
func (r *SQLRepository[T, C, U]) DeleteOne(ctx context.Context, id int64) (bool, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", r.table)

	var deleted bool
	err := r.run(ctx, OpDeleteOne, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, id)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, err
	}

	if !deleted {
		r.logger.Debug("Row not found or already deleted", zap.Int64("id", id))
	}
	return deleted, nil
}

func (r *SQLRepository[T, C, U]) queryOne(ctx context.Context, op, query string, args ...any) (T, error) {
	var item T
	err := r.run(ctx, op, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		item, err = r.mapper.Scan(tx.QueryRow(ctx, query, args...))
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return item, nil
}

// run executes fn inside a fresh transaction. fn's error rolls the
// transaction back; otherwise it is committed. The returned error is always
// a *StorageError.
func (r *SQLRepository[T, C, U]) run(ctx context.Context, op string, fn func(context.Context, pgx.Tx) error) (err error) {
	ctx, span := otel.DBSpan(ctx, op, r.table)
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.RecordDBQueryDuration(op, r.table, metricStatus(err), time.Since(start))
	}()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		otel.WrapDBError(span, err)
		return r.fail(op, err)
	}

	if err := fn(ctx, tx); err != nil {
		otel.WrapDBError(span, err)
		// rollback 不受请求取消影响
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			r.logger.Error("Rollback failed", zap.String("op", op), zap.Error(rbErr))
		}
		return r.fail(op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		otel.WrapDBError(span, err)
		return r.fail(op, err)
	}

	otel.WrapDBError(span, nil)
	return nil
}

func (r *SQLRepository[T, C, U]) fail(op string, err error) error {
	se := newStorageError(op, r.table, err)
	if se.Kind == KindNotFound {
		r.logger.Debug("No matching row", zap.String("op", op))
	} else {
		r.logger.Error("Storage operation failed",
			zap.String("op", op),
			zap.String("kind", string(se.Kind)),
			zap.Error(err),
		)
	}
	return se
}

func metricStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// placeholders returns "$from, $from+1, ..." for n parameters.
func placeholders(from, n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "$%d", from+i)
	}
	return b.String()
}
