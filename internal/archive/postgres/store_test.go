package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/legislature-crawler/internal/archive"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewWithPool(mock, "")
	require.NoError(t, err)
	return store, mock
}

func TestNewWithPoolValidation(t *testing.T) {
	t.Parallel()

	_, err := NewWithPool(nil, "archive")
	assert.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "bad;table")
	assert.Error(t, err)
}

func TestNewRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS legislature_archive").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPutUpsertsRow(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	body := []byte(`{"bill_id":7}`)
	mock.ExpectExec("INSERT INTO legislature_archive").
		WithArgs("bills/sd-legislature-bill-7.json", body).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Put(context.Background(), "bills/sd-legislature-bill-7.json", body))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExists(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("bills/sd-legislature-bill-7.json").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := store.Exists(context.Background(), "bills/sd-legislature-bill-7.json")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGet(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT body FROM legislature_archive").
		WithArgs("bills/sd-legislature-bill-7.json").
		WillReturnRows(pgxmock.NewRows([]string{"body"}).AddRow([]byte(`{"bill_id":7}`)))
	mock.ExpectQuery("SELECT body FROM legislature_archive").
		WithArgs("bills/missing.json").
		WillReturnError(pgx.ErrNoRows)

	got, err := store.Get(context.Background(), "bills/sd-legislature-bill-7.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"bill_id":7}`, string(got))

	_, err = store.Get(context.Background(), "bills/missing.json")
	assert.True(t, errors.Is(err, archive.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecErrorIsWrapped(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO legislature_archive").
		WithArgs("k", []byte("{}")).
		WillReturnError(errors.New("boom"))

	err := store.Put(context.Background(), "k", []byte("{}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert archive row")
}
