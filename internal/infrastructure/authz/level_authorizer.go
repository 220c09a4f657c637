package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mfi/backend/internal/domain/approval"
)

// ApproverLevelAssignment grants an approver authority over one level of one
// workflow, optionally capped by amount. Amount caps are in the same currency
// as the gated entity; a NULL cap means unlimited.
type ApproverLevelAssignment struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	ApproverID   uuid.UUID        `gorm:"column:approver_id;type:uuid;not null;index:idx_level_assignments_approver"`
	WorkflowCode string           `gorm:"column:workflow_code;size:50;not null;index:idx_level_assignments_workflow"`
	Level        int              `gorm:"column:level;not null"`
	MaxAmount    *decimal.Decimal `gorm:"column:max_amount;type:decimal(20,4)"`
	IsActive     bool             `gorm:"column:is_active;not null;default:true"`
	CreatedAt    time.Time        `gorm:"column:created_at"`
	UpdatedAt    time.Time        `gorm:"column:updated_at"`
}

// TableName returns the table name for GORM
func (ApproverLevelAssignment) TableName() string {
	return "approver_level_assignments"
}

// GormLevelAuthorizer answers level authorization checks from the
// approver_level_assignments table. A decision is authorized when an active
// assignment exists for the approver, workflow and level, and the request
// amount does not exceed the assignment's cap.
type GormLevelAuthorizer struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormLevelAuthorizer creates a new GormLevelAuthorizer
func NewGormLevelAuthorizer(db *gorm.DB, logger *zap.Logger) *GormLevelAuthorizer {
	return &GormLevelAuthorizer{db: db, logger: logger}
}

// IsAuthorizedForLevel reports whether the approver may decide at the given
// level. Amount-capped assignments refuse requests above the cap; requests
// without an amount pass any cap.
func (a *GormLevelAuthorizer) IsAuthorizedForLevel(ctx context.Context, approverID uuid.UUID, workflowCode string, level int, amount *decimal.Decimal) (bool, error) {
	var assignment ApproverLevelAssignment
	err := a.db.WithContext(ctx).
		Where("approver_id = ? AND workflow_code = ? AND level = ? AND is_active = ?",
			approverID, workflowCode, level, true).
		First(&assignment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to query level assignment: %w", err)
	}

	if assignment.MaxAmount != nil && amount != nil && amount.GreaterThan(*assignment.MaxAmount) {
		a.logger.Debug("decision refused by amount cap",
			zap.String("approver_id", approverID.String()),
			zap.String("workflow_code", workflowCode),
			zap.Int("level", level),
			zap.String("amount", amount.String()),
			zap.String("max_amount", assignment.MaxAmount.String()),
		)
		return false, nil
	}

	return true, nil
}

// Grant creates or reactivates an assignment for an approver
func (a *GormLevelAuthorizer) Grant(ctx context.Context, approverID uuid.UUID, workflowCode string, level int, maxAmount *decimal.Decimal) error {
	now := time.Now()
	var existing ApproverLevelAssignment
	err := a.db.WithContext(ctx).
		Where("approver_id = ? AND workflow_code = ? AND level = ?", approverID, workflowCode, level).
		First(&existing).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to query level assignment: %w", err)
		}
		assignment := &ApproverLevelAssignment{
			ID:           uuid.New(),
			ApproverID:   approverID,
			WorkflowCode: workflowCode,
			Level:        level,
			MaxAmount:    maxAmount,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := a.db.WithContext(ctx).Create(assignment).Error; err != nil {
			return fmt.Errorf("failed to create level assignment: %w", err)
		}
		return nil
	}

	return a.db.WithContext(ctx).
		Model(&ApproverLevelAssignment{}).
		Where("id = ?", existing.ID).
		Updates(map[string]any{
			"max_amount": maxAmount,
			"is_active":  true,
			"updated_at": now,
		}).Error
}

// Revoke deactivates an assignment. Missing assignments are a no-op.
func (a *GormLevelAuthorizer) Revoke(ctx context.Context, approverID uuid.UUID, workflowCode string, level int) error {
	return a.db.WithContext(ctx).
		Model(&ApproverLevelAssignment{}).
		Where("approver_id = ? AND workflow_code = ? AND level = ?", approverID, workflowCode, level).
		Updates(map[string]any{
			"is_active":  false,
			"updated_at": time.Now(),
		}).Error
}

var _ approval.LevelAuthorizer = (*GormLevelAuthorizer)(nil)
