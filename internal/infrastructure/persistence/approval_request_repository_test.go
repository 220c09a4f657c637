package persistence

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mfi/backend/internal/domain/approval"
	"github.com/mfi/backend/internal/domain/shared"
	"github.com/mfi/backend/tests/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// newMockApprovalRequestRepository creates a GormApprovalRequestRepository with a mocked SQL connection
func newMockApprovalRequestRepository(t *testing.T) (*GormApprovalRequestRepository, sqlmock.Sqlmock) {
	mdb := testutil.NewMockDB(t)
	return NewGormApprovalRequestRepository(mdb.DB), mdb.Mock
}

func requestRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "request_number", "workflow_id", "workflow_code", "entity_type",
		"entity_id", "amount", "status", "current_level", "total_levels",
		"is_sequential", "submitted_at", "submitted_by_id", "version",
	})
}

func decisionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "approval_request_id", "level", "approver_id", "decision", "comment", "decided_at",
	})
}

func newPersistedRequest(t *testing.T) *approval.ApprovalRequest {
	t.Helper()
	workflow, err := approval.NewApprovalWorkflow(
		"LOAN-STD", "Standard loan approval", approval.EntityTypeLoan,
		nil, nil, nil, 2, true, 10, 24,
	)
	require.NoError(t, err)

	amount := decimal.NewFromInt(50000)
	request, err := approval.NewApprovalRequest(
		workflow, "AR-20260831-0001", uuid.New(), &amount, nil, uuid.New(), "Working capital loan",
	)
	require.NoError(t, err)
	request.ClearDomainEvents()
	return request
}

func TestGormApprovalRequestRepository_FindByID(t *testing.T) {
	t.Run("finds request with decisions", func(t *testing.T) {
		repo, mock := newMockApprovalRequestRepository(t)

		requestID := uuid.New()
		now := time.Now()

		mock.ExpectQuery(`SELECT \* FROM "approval_requests" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(requestID, 1).
			WillReturnRows(requestRows().
				AddRow(requestID, "AR-20260831-0001", uuid.New(), "LOAN-STD", "LOAN",
					uuid.New(), decimal.NewFromInt(50000), "IN_PROGRESS", 2, 2,
					true, now, uuid.New(), 2))

		mock.ExpectQuery(`SELECT \* FROM "approval_decisions" WHERE "approval_decisions"\."approval_request_id" = \$1`).
			WithArgs(requestID).
			WillReturnRows(decisionRows().
				AddRow(uuid.New(), requestID, 1, uuid.New(), "APPROVE", "Looks fine", now))

		request, err := repo.FindByID(context.Background(), requestID)

		assert.NoError(t, err)
		require.NotNil(t, request)
		assert.Equal(t, approval.RequestStatusInProgress, request.Status)
		assert.Len(t, request.Decisions, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns nil for non-existent request", func(t *testing.T) {
		repo, mock := newMockApprovalRequestRepository(t)

		requestID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "approval_requests" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(requestID, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		request, err := repo.FindByID(context.Background(), requestID)

		assert.NoError(t, err)
		assert.Nil(t, request)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormApprovalRequestRepository_FindOpenByEntity(t *testing.T) {
	t.Run("returns nil when no open request exists", func(t *testing.T) {
		repo, mock := newMockApprovalRequestRepository(t)

		entityID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "approval_requests" WHERE entity_type = \$1 AND entity_id = \$2 AND status IN \(\$3,\$4\)`).
			WithArgs(approval.EntityTypeLoan, entityID,
				approval.RequestStatusSubmitted, approval.RequestStatusInProgress, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		request, err := repo.FindOpenByEntity(context.Background(), approval.EntityTypeLoan, entityID)

		assert.NoError(t, err)
		assert.Nil(t, request)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormApprovalRequestRepository_FindOverdue(t *testing.T) {
	t.Run("returns open requests past their SLA", func(t *testing.T) {
		repo, mock := newMockApprovalRequestRepository(t)

		now := time.Now()
		requestID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "approval_requests" WHERE status IN \(\$1,\$2\) AND sla_due_at IS NOT NULL AND sla_due_at < \$3 ORDER BY sla_due_at ASC`).
			WithArgs(approval.RequestStatusSubmitted, approval.RequestStatusInProgress, now).
			WillReturnRows(requestRows().
				AddRow(requestID, "AR-20260830-0002", uuid.New(), "WO-STD", "WRITE_OFF",
					uuid.New(), decimal.NewFromInt(12000), "SUBMITTED", 1, 3,
					true, now.Add(-72*time.Hour), uuid.New(), 1))

		mock.ExpectQuery(`SELECT \* FROM "approval_decisions"`).
			WithArgs(requestID).
			WillReturnRows(decisionRows())

		requests, err := repo.FindOverdue(context.Background(), now)

		assert.NoError(t, err)
		require.Len(t, requests, 1)
		assert.Equal(t, "AR-20260830-0002", requests[0].RequestNumber)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormApprovalRequestRepository_SaveWithLock(t *testing.T) {
	t.Run("rejects stale version", func(t *testing.T) {
		repo, mock := newMockApprovalRequestRepository(t)

		request := newPersistedRequest(t)
		_, err := request.RecordDecision(1, uuid.New(), approval.DecisionApprove, "")
		require.NoError(t, err)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "approval_requests" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err = repo.SaveWithLock(context.Background(), request)

		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormApprovalRequestRepository_Save(t *testing.T) {
	t.Run("maps a concurrent open-request collision to a duplicate request error", func(t *testing.T) {
		repo, mock := newMockApprovalRequestRepository(t)

		request := newPersistedRequest(t)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "approval_requests" SET`).
			WillReturnError(&pgconn.PgError{
				Code:           "23505",
				ConstraintName: "idx_approval_requests_one_open_per_entity",
			})
		mock.ExpectRollback()

		err := repo.Save(context.Background(), request)

		require.Error(t, err)
		var de *shared.DomainError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, "DUPLICATE_REQUEST", de.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps a request number collision to a duplicate number error", func(t *testing.T) {
		repo, mock := newMockApprovalRequestRepository(t)

		request := newPersistedRequest(t)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "approval_requests" SET`).
			WillReturnError(&pgconn.PgError{
				Code:           "23505",
				ConstraintName: "idx_approval_requests_request_number",
			})
		mock.ExpectRollback()

		err := repo.Save(context.Background(), request)

		assert.ErrorIs(t, err, shared.ErrDuplicateNumber)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("passes other database errors through", func(t *testing.T) {
		repo, mock := newMockApprovalRequestRepository(t)

		request := newPersistedRequest(t)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "approval_requests" SET`).
			WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		err := repo.Save(context.Background(), request)

		require.Error(t, err)
		var de *shared.DomainError
		assert.False(t, errors.As(err, &de))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormApprovalRequestRepository_GenerateRequestNumber(t *testing.T) {
	t.Run("starts at one for the first request of the day", func(t *testing.T) {
		repo, mock := newMockApprovalRequestRepository(t)

		mock.ExpectQuery(`SELECT "request_number" FROM "approval_requests"`).
			WillReturnRows(sqlmock.NewRows([]string{"request_number"}))

		number, err := repo.GenerateRequestNumber(context.Background())

		assert.NoError(t, err)
		assert.True(t, strings.HasPrefix(number, "AR-"))
		assert.True(t, strings.HasSuffix(number, "-0001"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("increments the highest existing sequence", func(t *testing.T) {
		repo, mock := newMockApprovalRequestRepository(t)

		mock.ExpectQuery(`SELECT "request_number" FROM "approval_requests"`).
			WillReturnRows(sqlmock.NewRows([]string{"request_number"}).AddRow("AR-20260831-0041"))

		number, err := repo.GenerateRequestNumber(context.Background())

		assert.NoError(t, err)
		assert.True(t, strings.HasSuffix(number, "-0042"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormApprovalRequestRepository_InterfaceCompliance(t *testing.T) {
	repo, _ := newMockApprovalRequestRepository(t)

	var _ approval.ApprovalRequestRepository = repo
}
