package event

import (
	"github.com/mfi/backend/internal/domain/approval"
	"github.com/mfi/backend/internal/domain/lending"
)

// RegisterAllEvents registers all domain event types with the serializer
// This is required for the OutboxProcessor to deserialize events from the outbox table
func RegisterAllEvents(serializer *EventSerializer) {
	// Approval domain - workflow definition events
	serializer.Register("ApprovalWorkflowCreated", &approval.WorkflowCreatedEvent{})
	serializer.Register("ApprovalWorkflowUpdated", &approval.WorkflowUpdatedEvent{})
	serializer.Register("ApprovalWorkflowDeactivated", &approval.WorkflowDeactivatedEvent{})

	// Approval domain - request lifecycle events
	serializer.Register("ApprovalRequestSubmitted", &approval.RequestSubmittedEvent{})
	serializer.Register("ApprovalRequestAdvanced", &approval.RequestAdvancedEvent{})
	serializer.Register("ApprovalRequestApproved", &approval.RequestApprovedEvent{})
	serializer.Register("ApprovalRequestRejected", &approval.RequestRejectedEvent{})
	serializer.Register("ApprovalRequestCancelled", &approval.RequestCancelledEvent{})

	// Lending domain - loan lifecycle events
	serializer.Register("LoanCreated", &lending.LoanCreatedEvent{})
	serializer.Register("LoanApproved", &lending.LoanApprovedEvent{})
	serializer.Register("LoanRejected", &lending.LoanRejectedEvent{})
	serializer.Register("LoanTrancheDisbursed", &lending.TrancheDisbursedEvent{})
	serializer.Register("LoanRateChangeApplied", &lending.RateChangeAppliedEvent{})
	serializer.Register("LoanDelinquent", &lending.LoanDelinquentEvent{})
	serializer.Register("LoanRepaymentRecorded", &lending.RepaymentRecordedEvent{})
	serializer.Register("LoanWrittenOff", &lending.LoanWrittenOffEvent{})
}
