// Package testutil provides shared helpers for the lending backend tests.
package testutil

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockDB is a GORM handle backed by sqlmock. The underlying connection
// is closed automatically when the test finishes.
type MockDB struct {
	DB   *gorm.DB
	Mock sqlmock.Sqlmock
}

// NewMockDB opens a sqlmock-backed GORM connection with the postgres
// dialector. SkipDefaultTransaction keeps expectations free of
// BEGIN/COMMIT noise for single-statement repository calls.
func NewMockDB(t *testing.T) *MockDB {
	return newMockDB(t, true)
}

// NewMockTxDB keeps GORM's default per-write transaction so tests can
// assert BEGIN/COMMIT ordering around writes.
func NewMockTxDB(t *testing.T) *MockDB {
	return newMockDB(t, false)
}

func newMockDB(t *testing.T, skipDefaultTx bool) *MockDB {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err, "failed to create sqlmock")
	t.Cleanup(func() { sqlDB.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       sqlDB,
		DriverName: "postgres",
	}), &gorm.Config{
		SkipDefaultTransaction: skipDefaultTx,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "failed to open GORM connection")

	return &MockDB{DB: gormDB, Mock: mock}
}

// ExpectationsWereMet fails the test if any declared expectation never fired.
func (m *MockDB) ExpectationsWereMet(t *testing.T) {
	t.Helper()
	require.NoError(t, m.Mock.ExpectationsWereMet(), "unmet database expectations")
}
