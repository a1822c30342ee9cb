package repository

import (
	"context"
	"errors"
	"net"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type widget struct {
	ID   int64
	Name string
}

type widgetCreate struct {
	Name string
}

type widgetUpdate struct {
	Name *string
}

type widgetMapper struct{}

func (widgetMapper) Table() string     { return "widgets" }
func (widgetMapper) Columns() []string { return []string{"id", "name"} }

func (widgetMapper) Scan(row pgx.Row) (widget, error) {
	var w widget
	err := row.Scan(&w.ID, &w.Name)
	return w, err
}

func (widgetMapper) InsertValues(c widgetCreate) ([]string, []any) {
	return []string{"name"}, []any{c.Name}
}

func (widgetMapper) UpdateValues(u widgetUpdate) ([]string, []any) {
	if u.Name == nil {
		return nil, nil
	}
	return []string{"name"}, []any{*u.Name}
}

func newWidgetRepo(t *testing.T) (*SQLRepository[widget, widgetCreate, widgetUpdate], pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	return New[widget, widgetCreate, widgetUpdate](mock, widgetMapper{}, zaptest.NewLogger(t)), mock
}

func q(sql string) string { return regexp.QuoteMeta(sql) }

func TestSQLRepository_AddOne(t *testing.T) {
	ctx := context.Background()

	t.Run("commits and returns id", func(t *testing.T) {
		repo, mock := newWidgetRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(q("INSERT INTO widgets (name) VALUES ($1) RETURNING id")).
			WithArgs("gear").
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
		mock.ExpectCommit()

		id, err := repo.AddOne(ctx, widgetCreate{Name: "gear"})
		require.NoError(t, err)
		assert.Equal(t, int64(7), id)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("constraint violation rolls back", func(t *testing.T) {
		repo, mock := newWidgetRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(q("INSERT INTO widgets (name) VALUES ($1) RETURNING id")).
			WithArgs("gear").
			WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
		mock.ExpectRollback()

		_, err := repo.AddOne(ctx, widgetCreate{Name: "gear"})
		require.Error(t, err)

		var se *StorageError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, KindConstraint, se.Kind)
		assert.Equal(t, OpAddOne, se.Op)
		assert.Equal(t, "widgets", se.Table)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure is a connection error", func(t *testing.T) {
		repo, mock := newWidgetRepo(t)
		mock.ExpectBegin().WillReturnError(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")})

		_, err := repo.AddOne(ctx, widgetCreate{Name: "gear"})
		assert.Equal(t, KindConnection, KindOf(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("commit failure is reported", func(t *testing.T) {
		repo, mock := newWidgetRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(q("INSERT INTO widgets (name) VALUES ($1) RETURNING id")).
			WithArgs("gear").
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))
		mock.ExpectCommit().WillReturnError(&pgconn.PgError{Code: "40001", Message: "could not serialize access"})

		_, err := repo.AddOne(ctx, widgetCreate{Name: "gear"})
		require.Error(t, err)
		assert.Equal(t, KindUnknown, KindOf(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSQLRepository_FindAll(t *testing.T) {
	ctx := context.Background()

	t.Run("empty table", func(t *testing.T) {
		repo, mock := newWidgetRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(q("SELECT id, name FROM widgets")).
			WillReturnRows(pgxmock.NewRows([]string{"id", "name"}))
		mock.ExpectCommit()

		items, err := repo.FindAll(ctx)
		require.NoError(t, err)
		assert.NotNil(t, items)
		assert.Empty(t, items)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns rows in storage order", func(t *testing.T) {
		repo, mock := newWidgetRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(q("SELECT id, name FROM widgets")).
			WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).
				AddRow(int64(2), "b").
				AddRow(int64(1), "a"))
		mock.ExpectCommit()

		items, err := repo.FindAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, []widget{{ID: 2, Name: "b"}, {ID: 1, Name: "a"}}, items)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query error rolls back", func(t *testing.T) {
		repo, mock := newWidgetRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(q("SELECT id, name FROM widgets")).
			WillReturnError(&pgconn.PgError{Code: "42P01", Message: `relation "widgets" does not exist`})
		mock.ExpectRollback()

		items, err := repo.FindAll(ctx)
		assert.Nil(t, items)
		assert.Equal(t, KindStatement, KindOf(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSQLRepository_FindByID(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		repo, mock := newWidgetRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(q("SELECT id, name FROM widgets WHERE id = $1")).
			WithArgs(int64(3)).
			WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).AddRow(int64(3), "c"))
		mock.ExpectCommit()

		item, err := repo.FindByID(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, widget{ID: 3, Name: "c"}, item)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing id is ErrNotFound", func(t *testing.T) {
		repo, mock := newWidgetRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(q("SELECT id, name FROM widgets WHERE id = $1")).
			WithArgs(int64(404)).
			WillReturnRows(pgxmock.NewRows([]string{"id", "name"}))
		mock.ExpectRollback()

		_, err := repo.FindByID(ctx, 404)
		require.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, KindNotFound, KindOf(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSQLRepository_FindRandom(t *testing.T) {
	ctx := context.Background()
	query := q("SELECT id, name FROM widgets ORDER BY random() LIMIT 1")

	t.Run("returns a row", func(t *testing.T) {
		repo, mock := newWidgetRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(query).
			WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).AddRow(int64(5), "e"))
		mock.ExpectCommit()

		item, err := repo.FindRandom(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(5), item.ID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty table", func(t *testing.T) {
		repo, mock := newWidgetRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(query).WillReturnRows(pgxmock.NewRows([]string{"id", "name"}))
		mock.ExpectRollback()

		_, err := repo.FindRandom(ctx)
		require.ErrorIs(t, err, ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSQLRepository_EditOne(t *testing.T) {
	ctx := context.Background()
	name := "renamed"

	t.Run("updates given columns", func(t *testing.T) {
		repo, mock := newWidgetRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(q("UPDATE widgets SET name = $2 WHERE id = $1 RETURNING id, name")).
			WithArgs(int64(1), "renamed").
			WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "renamed"))
		mock.ExpectCommit()

		item, err := repo.EditOne(ctx, 1, widgetUpdate{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, widget{ID: 1, Name: "renamed"}, item)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing id", func(t *testing.T) {
		repo, mock := newWidgetRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(q("UPDATE widgets SET name = $2 WHERE id = $1 RETURNING id, name")).
			WithArgs(int64(9), "renamed").
			WillReturnRows(pgxmock.NewRows([]string{"id", "name"}))
		mock.ExpectRollback()

		_, err := repo.EditOne(ctx, 9, widgetUpdate{Name: &name})
		require.ErrorIs(t, err, ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no fields reads the current row", func(t *testing.T) {
		repo, mock := newWidgetRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(q("SELECT id, name FROM widgets WHERE id = $1")).
			WithArgs(int64(1)).
			WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "a"))
		mock.ExpectCommit()

		item, err := repo.EditOne(ctx, 1, widgetUpdate{})
		require.NoError(t, err)
		assert.Equal(t, "a", item.Name)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSQLRepository_DeleteOne(t *testing.T) {
	ctx := context.Background()
	query := q("DELETE FROM widgets WHERE id = $1")

	t.Run("deleted", func(t *testing.T) {
		repo, mock := newWidgetRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(query).WithArgs(int64(1)).WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectCommit()

		ok, err := repo.DeleteOne(ctx, 1)
		require.NoError(t, err)
		assert.True(t, ok)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("absent id is false without error", func(t *testing.T) {
		repo, mock := newWidgetRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(query).WithArgs(int64(2)).WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mock.ExpectCommit()

		ok, err := repo.DeleteOne(ctx, 2)
		require.NoError(t, err)
		assert.False(t, ok)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exec error rolls back", func(t *testing.T) {
		repo, mock := newWidgetRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(query).WithArgs(int64(3)).WillReturnError(context.DeadlineExceeded)
		mock.ExpectRollback()

		ok, err := repo.DeleteOne(ctx, 3)
		assert.False(t, ok)
		assert.Equal(t, KindConnection, KindOf(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"no rows", pgx.ErrNoRows, KindNotFound},
		{"wrapped not found", errors.Join(errors.New("lookup"), ErrNotFound), KindNotFound},
		{"canceled", context.Canceled, KindCanceled},
		{"deadline", context.DeadlineExceeded, KindConnection},
		{"not null", &pgconn.PgError{Code: "23502"}, KindConstraint},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, KindConnection},
		{"syntax", &pgconn.PgError{Code: "42601"}, KindStatement},
		{"bad number", &pgconn.PgError{Code: "22003"}, KindStatement},
		{"serialization", &pgconn.PgError{Code: "40001"}, KindUnknown},
		{"net", &net.OpError{Op: "read", Net: "tcp", Err: errors.New("reset")}, KindConnection},
		{"other", errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestStorageError(t *testing.T) {
	err := newStorageError(OpFindByID, "widgets", pgx.ErrNoRows)

	assert.Equal(t, "find_by_id widgets: record not found", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(1, 0))
	assert.Equal(t, "$1", placeholders(1, 1))
	assert.Equal(t, "$2, $3, $4", placeholders(2, 3))
}
