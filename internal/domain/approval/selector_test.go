package approval

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/mfi/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustWorkflow(t *testing.T, code string, entityType EntityType, min, max *decimal.Decimal, branchID *uuid.UUID, priority int) ApprovalWorkflow {
	w, err := NewApprovalWorkflow(code, code, entityType, min, max, branchID, 2, true, priority, 24)
	require.NoError(t, err)
	return *w
}

func TestWorkflowSelector(t *testing.T) {
	selector := NewWorkflowSelector()
	branchID := uuid.New()

	t.Run("returns NoWorkflowMatched with no candidates", func(t *testing.T) {
		workflows := []ApprovalWorkflow{
			mustWorkflow(t, "WF-A", EntityTypeLoan, decimalPtr(10000), decimalPtr(100000), nil, 0),
		}
		_, err := selector.Select(workflows, EntityTypeLoan, decimalPtr(500), nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrNoWorkflowMatched))
	})

	t.Run("picks the only matching workflow", func(t *testing.T) {
		workflows := []ApprovalWorkflow{
			mustWorkflow(t, "WF-A", EntityTypeLoan, decimalPtr(10000), decimalPtr(100000), nil, 0),
			mustWorkflow(t, "WF-B", EntityTypeWriteOff, nil, nil, nil, 0),
		}
		w, err := selector.Select(workflows, EntityTypeLoan, decimalPtr(50000), nil)
		require.NoError(t, err)
		assert.Equal(t, "WF-A", w.Code)
	})

	t.Run("exact branch match beats global", func(t *testing.T) {
		workflows := []ApprovalWorkflow{
			mustWorkflow(t, "WF-GLOBAL", EntityTypeLoan, nil, nil, nil, 100),
			mustWorkflow(t, "WF-BRANCH", EntityTypeLoan, nil, nil, &branchID, 0),
		}
		w, err := selector.Select(workflows, EntityTypeLoan, decimalPtr(50000), &branchID)
		require.NoError(t, err)
		assert.Equal(t, "WF-BRANCH", w.Code)
	})

	t.Run("higher priority wins among equals", func(t *testing.T) {
		workflows := []ApprovalWorkflow{
			mustWorkflow(t, "WF-LOW", EntityTypeLoan, nil, nil, nil, 1),
			mustWorkflow(t, "WF-HIGH", EntityTypeLoan, nil, nil, nil, 9),
		}
		w, err := selector.Select(workflows, EntityTypeLoan, decimalPtr(50000), nil)
		require.NoError(t, err)
		assert.Equal(t, "WF-HIGH", w.Code)
	})

	t.Run("narrower amount band wins", func(t *testing.T) {
		workflows := []ApprovalWorkflow{
			mustWorkflow(t, "WF-WIDE", EntityTypeLoan, decimalPtr(0), decimalPtr(1000000), nil, 0),
			mustWorkflow(t, "WF-NARROW", EntityTypeLoan, decimalPtr(40000), decimalPtr(60000), nil, 0),
		}
		w, err := selector.Select(workflows, EntityTypeLoan, decimalPtr(50000), nil)
		require.NoError(t, err)
		assert.Equal(t, "WF-NARROW", w.Code)
	})

	t.Run("bounded band beats unbounded band", func(t *testing.T) {
		workflows := []ApprovalWorkflow{
			mustWorkflow(t, "WF-OPEN", EntityTypeLoan, decimalPtr(0), nil, nil, 0),
			mustWorkflow(t, "WF-BOUND", EntityTypeLoan, decimalPtr(0), decimalPtr(1000000), nil, 0),
		}
		w, err := selector.Select(workflows, EntityTypeLoan, decimalPtr(50000), nil)
		require.NoError(t, err)
		assert.Equal(t, "WF-BOUND", w.Code)
	})

	t.Run("lexical code breaks remaining ties", func(t *testing.T) {
		workflows := []ApprovalWorkflow{
			mustWorkflow(t, "WF-ZULU", EntityTypeLoan, nil, nil, nil, 0),
			mustWorkflow(t, "WF-ALPHA", EntityTypeLoan, nil, nil, nil, 0),
		}
		w, err := selector.Select(workflows, EntityTypeLoan, decimalPtr(50000), nil)
		require.NoError(t, err)
		assert.Equal(t, "WF-ALPHA", w.Code)
	})

	t.Run("selection is reproducible", func(t *testing.T) {
		workflows := []ApprovalWorkflow{
			mustWorkflow(t, "WF-B", EntityTypeLoan, decimalPtr(0), decimalPtr(1000000), nil, 3),
			mustWorkflow(t, "WF-A", EntityTypeLoan, decimalPtr(10000), decimalPtr(100000), nil, 3),
			mustWorkflow(t, "WF-C", EntityTypeLoan, nil, nil, nil, 5),
		}
		first, err := selector.Select(workflows, EntityTypeLoan, decimalPtr(50000), nil)
		require.NoError(t, err)
		for i := 0; i < 10; i++ {
			again, err := selector.Select(workflows, EntityTypeLoan, decimalPtr(50000), nil)
			require.NoError(t, err)
			assert.Equal(t, first.Code, again.Code)
		}
	})
}
