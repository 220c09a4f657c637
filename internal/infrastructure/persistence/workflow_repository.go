package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mfi/backend/internal/domain/approval"
	"github.com/mfi/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormWorkflowRepository implements WorkflowRepository using GORM
type GormWorkflowRepository struct {
	db          *gorm.DB
	outboxSaver shared.OutboxEventSaver // optional, for transactional outbox pattern
}

// NewGormWorkflowRepository creates a new GormWorkflowRepository
func NewGormWorkflowRepository(db *gorm.DB) *GormWorkflowRepository {
	return &GormWorkflowRepository{db: db}
}

// SetOutboxEventSaver sets the outbox event saver for transactional event publishing
func (r *GormWorkflowRepository) SetOutboxEventSaver(saver shared.OutboxEventSaver) {
	r.outboxSaver = saver
}

// FindByID finds a workflow by ID
func (r *GormWorkflowRepository) FindByID(ctx context.Context, id uuid.UUID) (*approval.ApprovalWorkflow, error) {
	var workflow approval.ApprovalWorkflow
	if err := r.db.WithContext(ctx).First(&workflow, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &workflow, nil
}

// FindByCode finds a workflow by its unique code
func (r *GormWorkflowRepository) FindByCode(ctx context.Context, code string) (*approval.ApprovalWorkflow, error) {
	var workflow approval.ApprovalWorkflow
	if err := r.db.WithContext(ctx).First(&workflow, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &workflow, nil
}

// FindActiveByEntityType returns every active workflow for an entity type,
// highest priority first. The domain selector narrows them down to one.
func (r *GormWorkflowRepository) FindActiveByEntityType(ctx context.Context, entityType approval.EntityType) ([]approval.ApprovalWorkflow, error) {
	var workflows []approval.ApprovalWorkflow
	if err := r.db.WithContext(ctx).
		Where("entity_type = ? AND is_active = ?", entityType, true).
		Order("priority DESC, code ASC").
		Find(&workflows).Error; err != nil {
		return nil, err
	}
	return workflows, nil
}

// FindAll finds workflows with filtering
func (r *GormWorkflowRepository) FindAll(ctx context.Context, filter approval.WorkflowFilter) ([]approval.ApprovalWorkflow, error) {
	var workflows []approval.ApprovalWorkflow
	query := r.applyWorkflowFilter(r.db.WithContext(ctx), filter)

	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize)
		if filter.Page > 0 {
			query = query.Offset((filter.Page - 1) * filter.PageSize)
		}
	}

	if err := query.Order("priority DESC, code ASC").Find(&workflows).Error; err != nil {
		return nil, err
	}
	return workflows, nil
}

// Count counts workflows matching the filter
func (r *GormWorkflowRepository) Count(ctx context.Context, filter approval.WorkflowFilter) (int64, error) {
	var count int64
	query := r.applyWorkflowFilter(r.db.WithContext(ctx).Model(&approval.ApprovalWorkflow{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates a workflow and appends its pending domain events to
// the outbox in the same transaction
func (r *GormWorkflowRepository) Save(ctx context.Context, workflow *approval.ApprovalWorkflow) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(workflow).Error; err != nil {
			return err
		}
		return r.saveEvents(ctx, tx, workflow.GetDomainEvents())
	})
	if err != nil {
		return err
	}
	workflow.ClearDomainEvents()
	return nil
}

// SaveWithLock saves with optimistic locking (version check). The domain layer
// has already incremented the version, so the row must still carry version-1.
func (r *GormWorkflowRepository) SaveWithLock(ctx context.Context, workflow *approval.ApprovalWorkflow) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&approval.ApprovalWorkflow{}).
			Where("id = ? AND version = ?", workflow.ID, workflow.Version-1).
			Updates(map[string]interface{}{
				"name":                workflow.Name,
				"min_amount":          workflow.MinAmount,
				"max_amount":          workflow.MaxAmount,
				"number_of_levels":    workflow.NumberOfLevels,
				"is_sequential":       workflow.IsSequential,
				"priority":            workflow.Priority,
				"sla_hours_per_level": workflow.SLAHoursPerLevel,
				"is_active":           workflow.IsActive,
				"description":         workflow.Description,
				"version":             workflow.Version,
				"updated_at":          time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrConcurrencyConflict
		}
		return r.saveEvents(ctx, tx, workflow.GetDomainEvents())
	})
	if err != nil {
		return err
	}
	workflow.ClearDomainEvents()
	return nil
}

// saveEvents saves domain events to the outbox within the current transaction
func (r *GormWorkflowRepository) saveEvents(ctx context.Context, tx *gorm.DB, events []shared.DomainEvent) error {
	if r.outboxSaver == nil || len(events) == 0 {
		return nil
	}
	if err := r.outboxSaver.SaveEvents(ctx, tx, events...); err != nil {
		return fmt.Errorf("failed to save events to outbox: %w", err)
	}
	return nil
}

// applyWorkflowFilter applies filter options to the query
func (r *GormWorkflowRepository) applyWorkflowFilter(query *gorm.DB, filter approval.WorkflowFilter) *gorm.DB {
	if filter.EntityType != nil {
		query = query.Where("entity_type = ?", *filter.EntityType)
	}
	if filter.BranchID != nil {
		query = query.Where("branch_id = ?", *filter.BranchID)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("code ILIKE ? OR name ILIKE ?", pattern, pattern)
	}
	return query
}

// Ensure GormWorkflowRepository implements the interface
var _ approval.WorkflowRepository = (*GormWorkflowRepository)(nil)
