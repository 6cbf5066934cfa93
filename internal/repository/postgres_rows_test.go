package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock
}

// 游标中途断开：迭代错误必须向上冒泡，不能返回截断的结果集
func TestListAssignmentsForUser_RowIterationErrorSurfaces(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	repo := NewPostgresRolesRepository(db)

	rowErr := errors.New("server closed the connection")
	rows := sqlmock.NewRows([]string{
		"assignment_id", "user_id", "role_id", "company_id", "created_at", "role_name", "level",
	}).
		AddRow(int64(1), int64(5), int64(2), sql.NullInt64{Int64: 1, Valid: true}, time.Now(), "CompanyAdmin", 80).
		AddRow(int64(2), int64(5), int64(4), sql.NullInt64{Int64: 1, Valid: true}, time.Now(), "Employee", 10).
		RowError(1, rowErr)

	mock.ExpectQuery(`SELECT`).
		WithArgs(int64(5)).
		WillReturnRows(rows)

	assignments, err := repo.ListAssignmentsForUser(context.Background(), 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, rowErr)
	assert.Nil(t, assignments)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListMenuEntries_RowIterationErrorSurfaces(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	repo := NewPostgresMenusRepository(db)

	rowErr := errors.New("connection reset by peer")
	rows := sqlmock.NewRows([]string{
		"menu_id", "menu_code", "module", "sort_order", "min_level", "is_active",
	}).
		AddRow(int64(1), "core.dashboard", "core", 10, 10, sql.NullBool{Bool: true, Valid: true}).
		RowError(0, rowErr)

	mock.ExpectQuery(`SELECT`).WillReturnRows(rows)

	entries, err := repo.ListMenuEntries(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, rowErr)
	assert.Nil(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// 坏行不再被静默跳过：scan 失败整个查询报错
func TestSearchCompaniesForLogin_ScanErrorSurfaces(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	repo := NewPostgresUsersRepository(db)
	accountHash := []byte{0x01}
	passwordHash := []byte{0x02}

	rows := sqlmock.NewRows([]string{"company_id", "account_type", "priority"}).
		AddRow(int64(1), "account", 2).
		AddRow("not-a-number", "account", 2)

	mock.ExpectQuery(`SELECT`).
		WithArgs(accountHash, passwordHash).
		WillReturnRows(rows)

	matches, err := repo.SearchCompaniesForLogin(context.Background(), accountHash, passwordHash)
	require.Error(t, err)
	assert.Nil(t, matches)
	assert.NoError(t, mock.ExpectationsWereMet())
}
