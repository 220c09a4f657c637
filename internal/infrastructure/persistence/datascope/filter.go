// Package datascope narrows GORM list queries to the rows the caller may
// see. Scope rules come from the caller's roles and support four levels:
// ALL, BRANCH (rows of the user's assigned branches), CUSTOM (values of a
// whitelisted column), and SELF (rows the user created).
//
// The HTTP middleware stores the merged scopes in the request context and
// repositories pick them up with NewFilterFromContext:
//
//	query = datascope.NewFilterFromContext(ctx).Apply(query, "loan")
package datascope

import (
	"context"

	"github.com/google/uuid"
	"github.com/mfi/backend/internal/domain/identity"
	"github.com/mfi/backend/internal/infrastructure/logger"
	"gorm.io/gorm"
)

type contextKey string

// scopesKey holds the merged resource-to-scope map in the request context.
const scopesKey contextKey = "data_scopes"

// WithDataScopes merges the scope rules of every enabled role into ctx.
// When two roles scope the same resource the wider scope wins.
func WithDataScopes(ctx context.Context, roles []identity.Role) context.Context {
	return context.WithValue(ctx, scopesKey, mergeRoleScopes(roles))
}

func mergeRoleScopes(roles []identity.Role) map[string]identity.DataScope {
	merged := make(map[string]identity.DataScope)
	for _, role := range roles {
		if !role.IsEnabled {
			continue
		}
		for _, ds := range role.DataScopes {
			existing, ok := merged[ds.Resource]
			if !ok || scopeLevel(ds.ScopeType) > scopeLevel(existing.ScopeType) {
				merged[ds.Resource] = ds
			}
		}
	}
	return merged
}

// scopeLevel orders scope types by how much they expose. ALL wins over
// BRANCH, BRANCH over CUSTOM, CUSTOM over SELF.
func scopeLevel(t identity.DataScopeType) int {
	switch t {
	case identity.DataScopeAll:
		return 100
	case identity.DataScopeBranch:
		return 50
	case identity.DataScopeCustom:
		return 40
	case identity.DataScopeSelf:
		return 10
	default:
		return 0
	}
}

// Filter applies the caller's scope rules to GORM queries.
type Filter struct {
	userID     uuid.UUID
	dataScopes map[string]identity.DataScope
}

// NewFilterFromContext builds a Filter from the scopes the middleware
// stored in ctx. A context without scopes yields an unrestricted filter.
func NewFilterFromContext(ctx context.Context) *Filter {
	var userID uuid.UUID
	if s := logger.GetUserID(ctx); s != "" {
		userID, _ = uuid.Parse(s)
	}

	dataScopes, _ := ctx.Value(scopesKey).(map[string]identity.DataScope)
	if dataScopes == nil {
		dataScopes = make(map[string]identity.DataScope)
	}
	return &Filter{userID: userID, dataScopes: dataScopes}
}

// Apply narrows query to the rows of resource the caller may see. A
// resource without a scope rule stays unrestricted. A restricted scope
// with nothing to match against yields an empty result rather than
// leaking rows.
func (f *Filter) Apply(query *gorm.DB, resource string) *gorm.DB {
	ds, ok := f.dataScopes[resource]
	if !ok {
		return query
	}

	switch ds.ScopeType {
	case identity.DataScopeSelf:
		if f.userID == uuid.Nil {
			return query.Where("1 = 0")
		}
		return query.Where("created_by = ?", f.userID)

	case identity.DataScopeBranch:
		if len(ds.ScopeValues) == 0 {
			return query.Where("1 = 0")
		}
		return query.Where("branch_id IN ?", ds.ScopeValues)

	case identity.DataScopeCustom:
		if len(ds.ScopeValues) == 0 {
			return query.Where("1 = 0")
		}
		return query.Where(customScopeColumn(ds, resource)+" IN ?", ds.ScopeValues)

	default:
		// ALL and unknown scope types leave the query unrestricted.
		return query
	}
}

// customScopeColumn resolves the column a CUSTOM scope filters on. Only
// whitelisted column names reach the SQL text; anything else falls back
// to created_by.
func customScopeColumn(ds identity.DataScope, resource string) string {
	column := ds.ScopeField
	if column == "" {
		column = branchScopedResources[resource]
	}
	if !allowedScopeColumns[column] {
		return "created_by"
	}
	return column
}

// branchScopedResources maps each branch-partitioned resource to its
// branch column. CUSTOM scopes without an explicit field default to it.
var branchScopedResources = map[string]string{
	"loan":              "branch_id",
	"tranche":           "branch_id",
	"rate_change":       "branch_id",
	"repayment":         "branch_id",
	"approval_request":  "branch_id",
	"approval_workflow": "branch_id",
	"ledger":            "branch_id",
	"user":              "branch_id",
}

// allowedScopeColumns is the whitelist of columns CUSTOM scopes may
// filter on. Scope values are bound parameters, the column name is not.
var allowedScopeColumns = map[string]bool{
	"branch_id":   true,
	"region_id":   true,
	"created_by":  true,
	"owner_id":    true,
	"assigned_to": true,
}
