package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mfi/backend/internal/domain/approval"
	"github.com/mfi/backend/internal/domain/shared"
	"github.com/mfi/backend/internal/infrastructure/persistence/datascope"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormApprovalRequestRepository implements ApprovalRequestRepository using GORM
type GormApprovalRequestRepository struct {
	db          *gorm.DB
	outboxSaver shared.OutboxEventSaver // optional, for transactional outbox pattern
}

// NewGormApprovalRequestRepository creates a new GormApprovalRequestRepository
func NewGormApprovalRequestRepository(db *gorm.DB) *GormApprovalRequestRepository {
	return &GormApprovalRequestRepository{db: db}
}

// SetOutboxEventSaver sets the outbox event saver for transactional event publishing
func (r *GormApprovalRequestRepository) SetOutboxEventSaver(saver shared.OutboxEventSaver) {
	r.outboxSaver = saver
}

// FindByID finds an approval request by ID
func (r *GormApprovalRequestRepository) FindByID(ctx context.Context, id uuid.UUID) (*approval.ApprovalRequest, error) {
	var request approval.ApprovalRequest
	if err := r.db.WithContext(ctx).
		Preload("Decisions").
		First(&request, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

// FindByRequestNumber finds an approval request by request number
func (r *GormApprovalRequestRepository) FindByRequestNumber(ctx context.Context, requestNumber string) (*approval.ApprovalRequest, error) {
	var request approval.ApprovalRequest
	if err := r.db.WithContext(ctx).
		Preload("Decisions").
		First(&request, "request_number = ?", requestNumber).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

// FindOpenByEntity returns the in-flight request for an entity, or nil.
// At most one open request exists per entity; the partial unique index on
// (entity_type, entity_id) enforces it, this query serves the pre-check.
func (r *GormApprovalRequestRepository) FindOpenByEntity(ctx context.Context, entityType approval.EntityType, entityID uuid.UUID) (*approval.ApprovalRequest, error) {
	var request approval.ApprovalRequest
	if err := r.db.WithContext(ctx).
		Preload("Decisions").
		Where("entity_type = ? AND entity_id = ? AND status IN ?", entityType, entityID, openStatuses()).
		First(&request).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

// FindOverdue returns open requests whose SLA due time has passed, most
// overdue first
func (r *GormApprovalRequestRepository) FindOverdue(ctx context.Context, now time.Time) ([]approval.ApprovalRequest, error) {
	var requests []approval.ApprovalRequest
	if err := r.db.WithContext(ctx).
		Preload("Decisions").
		Where("status IN ? AND sla_due_at IS NOT NULL AND sla_due_at < ?", openStatuses(), now).
		Order("sla_due_at ASC").
		Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

// FindAll finds approval requests with filtering. The caller's data scopes
// narrow the result, e.g. branch staff only see requests of their own branches.
func (r *GormApprovalRequestRepository) FindAll(ctx context.Context, filter approval.RequestFilter) ([]approval.ApprovalRequest, error) {
	var requests []approval.ApprovalRequest
	query := r.applyRequestFilter(r.db.WithContext(ctx), filter)
	query = datascope.NewFilterFromContext(ctx).Apply(query, "approval_request")

	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize)
		if filter.Page > 0 {
			query = query.Offset((filter.Page - 1) * filter.PageSize)
		}
	}

	if err := query.Preload("Decisions").Order("submitted_at DESC").Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

// Count counts approval requests matching the filter, under the same data
// scoping as FindAll
func (r *GormApprovalRequestRepository) Count(ctx context.Context, filter approval.RequestFilter) (int64, error) {
	var count int64
	query := r.applyRequestFilter(r.db.WithContext(ctx).Model(&approval.ApprovalRequest{}), filter)
	query = datascope.NewFilterFromContext(ctx).Apply(query, "approval_request")
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates an approval request, its decisions, and its pending
// domain events atomically. Unique-index violations come back as typed domain
// errors so the caller can distinguish a concurrent duplicate submission from
// a request-number collision.
func (r *GormApprovalRequestRepository) Save(ctx context.Context, request *approval.ApprovalRequest) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Decisions").Save(request).Error; err != nil {
			return err
		}
		if err := r.saveDecisions(tx, request); err != nil {
			return err
		}
		return r.saveEvents(ctx, tx, request.GetDomainEvents())
	})
	if err != nil {
		if isUniqueViolation(err, "idx_approval_requests_one_open_per_entity") {
			return shared.NewDomainError("DUPLICATE_REQUEST", "An approval request is already open for this entity")
		}
		if isUniqueViolation(err, "idx_approval_requests_request_number") {
			return shared.ErrDuplicateNumber
		}
		return err
	}
	request.ClearDomainEvents()
	return nil
}

// SaveWithLock saves with optimistic locking (version check). The domain layer
// has already incremented the version, so the row must still carry version-1.
// Decisions and outbox events are written in the same transaction.
func (r *GormApprovalRequestRepository) SaveWithLock(ctx context.Context, request *approval.ApprovalRequest) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&approval.ApprovalRequest{}).
			Where("id = ? AND version = ?", request.ID, request.Version-1).
			Updates(map[string]interface{}{
				"status":           request.Status,
				"current_level":    request.CurrentLevel,
				"completed_at":     request.CompletedAt,
				"rejection_reason": request.RejectionReason,
				"cancel_reason":    request.CancelReason,
				"cancelled_by_id":  request.CancelledByID,
				"version":          request.Version,
				"updated_at":       request.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrConcurrencyConflict
		}
		if err := r.saveDecisions(tx, request); err != nil {
			return err
		}
		return r.saveEvents(ctx, tx, request.GetDomainEvents())
	})
	if err != nil {
		return err
	}
	request.ClearDomainEvents()
	return nil
}

// GenerateRequestNumber generates a unique request number
// Format: AR-YYYYMMDD-NNNN (e.g., AR-20260831-0001)
func (r *GormApprovalRequestRepository) GenerateRequestNumber(ctx context.Context) (string, error) {
	prefix := fmt.Sprintf("AR-%s-", time.Now().Format("20060102"))

	var maxNumber string
	if err := r.db.WithContext(ctx).
		Model(&approval.ApprovalRequest{}).
		Select("request_number").
		Where("request_number LIKE ?", prefix+"%").
		Order("request_number DESC").
		Limit(1).
		Scan(&maxNumber).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	nextSeq := 1
	if len(maxNumber) >= 4 {
		var seq int
		if _, err := fmt.Sscanf(maxNumber[len(maxNumber)-4:], "%04d", &seq); err == nil {
			nextSeq = seq + 1
		}
	}

	return fmt.Sprintf("%s%04d", prefix, nextSeq), nil
}

// saveDecisions upserts the decision rows. Decisions are append-only, so
// removed rows never need cleaning up.
func (r *GormApprovalRequestRepository) saveDecisions(tx *gorm.DB, request *approval.ApprovalRequest) error {
	for i := range request.Decisions {
		request.Decisions[i].ApprovalRequestID = request.ID
		if err := tx.Save(&request.Decisions[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

// saveEvents saves domain events to the outbox within the current transaction
func (r *GormApprovalRequestRepository) saveEvents(ctx context.Context, tx *gorm.DB, events []shared.DomainEvent) error {
	if r.outboxSaver == nil || len(events) == 0 {
		return nil
	}
	if err := r.outboxSaver.SaveEvents(ctx, tx, events...); err != nil {
		return fmt.Errorf("failed to save events to outbox: %w", err)
	}
	return nil
}

// applyRequestFilter applies filter options to the query
func (r *GormApprovalRequestRepository) applyRequestFilter(query *gorm.DB, filter approval.RequestFilter) *gorm.DB {
	if filter.EntityType != nil {
		query = query.Where("entity_type = ?", *filter.EntityType)
	}
	if filter.EntityID != nil {
		query = query.Where("entity_id = ?", *filter.EntityID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.BranchID != nil {
		query = query.Where("branch_id = ?", *filter.BranchID)
	}
	if filter.SubmittedBy != nil {
		query = query.Where("submitted_by_id = ?", *filter.SubmittedBy)
	}
	if filter.FromDate != nil {
		query = query.Where("submitted_at >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("submitted_at <= ?", *filter.ToDate)
	}
	return query
}

// openStatuses returns the statuses in which a request still accepts decisions
func openStatuses() []approval.ApprovalRequestStatus {
	return []approval.ApprovalRequestStatus{
		approval.RequestStatusSubmitted,
		approval.RequestStatusInProgress,
	}
}

// Ensure GormApprovalRequestRepository implements the interface
var _ approval.ApprovalRequestRepository = (*GormApprovalRequestRepository)(nil)
