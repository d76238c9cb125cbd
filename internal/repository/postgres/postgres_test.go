package postgres

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, BaseRepository) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	db := sqlx.NewDb(mockDB, "sqlmock")
	t.Cleanup(func() { db.Close() })

	return db, mock, NewBaseRepository(db)
}

var fixedTime = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func tenantRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "subdomain", "status", "created_at", "updated_at", "deleted_at"})
}

func caseRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "hospital_id", "patient_id", "current_user_id", "created_by",
		"status", "technician_status", "scientist_status", "doctor_status",
		"priority", "notes", "created_at", "updated_at", "deleted_at",
	})
}
