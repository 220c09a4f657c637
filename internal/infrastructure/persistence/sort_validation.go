package persistence

import "strings"

// Sort parameters arrive from list endpoints as raw strings and end up
// concatenated into ORDER BY clauses. Both the column and the direction
// therefore go through a whitelist before touching SQL.

// ValidateSortOrder normalizes the direction to ASC or DESC, falling
// back to DESC for anything unrecognized.
func ValidateSortOrder(orderDir string) string {
	if strings.EqualFold(strings.TrimSpace(orderDir), "ASC") {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField returns the field when the whitelist allows it and
// defaultField otherwise.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// sortFields builds a whitelist from column names, always including the
// base entity columns.
func sortFields(columns ...string) map[string]bool {
	allowed := map[string]bool{
		"id":         true,
		"created_at": true,
		"updated_at": true,
	}
	for _, column := range columns {
		allowed[column] = true
	}
	return allowed
}

var (
	UserSortFields = sortFields(
		"username", "email", "display_name", "status", "last_login_at",
	)
	RoleSortFields = sortFields(
		"code", "name", "sort_order", "is_enabled", "is_system_role",
	)
	LoanSortFields = sortFields(
		"loan_number", "borrower_name", "status", "principal_amount",
		"annual_rate", "term_months", "disbursed_at", "closed_at",
	)
	ApprovalWorkflowSortFields = sortFields(
		"code", "name", "entity_type", "priority", "number_of_levels", "is_active",
	)
	ApprovalRequestSortFields = sortFields(
		"request_number", "entity_type", "status", "amount",
		"current_level", "submitted_at", "sla_due_at", "completed_at",
	)
	LedgerPostingSortFields = sortFields(
		"posting_ref", "loan_id", "entry_type", "amount", "occurred_at",
	)
)
