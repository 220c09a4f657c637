package approval

import (
	"sort"

	"github.com/google/uuid"
	"github.com/mfi/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// WorkflowSelector picks the single applicable workflow for an action.
// Selection is a pure function of its inputs: the same entity type, amount,
// branch and set of active workflows always yields the same workflow.
type WorkflowSelector struct{}

// NewWorkflowSelector creates a new WorkflowSelector
func NewWorkflowSelector() *WorkflowSelector {
	return &WorkflowSelector{}
}

// Select returns the single workflow that should route the given action.
//
// Candidates are filtered by Matches, then ranked:
//  1. exact branch match beats global match
//  2. higher priority wins
//  3. narrower amount band (max-min) wins; a fully bounded band is
//     narrower than an unbounded one
//  4. lexical workflow code, to keep selection reproducible
//
// Returns ErrNoWorkflowMatched when no candidate remains.
func (s *WorkflowSelector) Select(workflows []ApprovalWorkflow, entityType EntityType, amount *decimal.Decimal, branchID *uuid.UUID) (*ApprovalWorkflow, error) {
	candidates := make([]*ApprovalWorkflow, 0, len(workflows))
	for i := range workflows {
		if workflows[i].Matches(entityType, amount, branchID) {
			candidates = append(candidates, &workflows[i])
		}
	}

	if len(candidates) == 0 {
		return nil, shared.ErrNoWorkflowMatched
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return lessWorkflow(candidates[i], candidates[j])
	})

	return candidates[0], nil
}

// lessWorkflow reports whether a ranks ahead of b in selection order
func lessWorkflow(a, b *ApprovalWorkflow) bool {
	if a.IsBranchScoped() != b.IsBranchScoped() {
		return a.IsBranchScoped()
	}
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	aw, bw := a.AmountBandWidth(), b.AmountBandWidth()
	switch {
	case aw != nil && bw == nil:
		return true
	case aw == nil && bw != nil:
		return false
	case aw != nil && bw != nil && !aw.Equal(*bw):
		return aw.LessThan(*bw)
	}
	return a.Code < b.Code
}
