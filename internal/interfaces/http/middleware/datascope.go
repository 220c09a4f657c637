package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mfi/backend/internal/domain/identity"
	"github.com/mfi/backend/internal/infrastructure/persistence/datascope"
)

// DataScopeMiddlewareConfig configures role loading for request scoping.
type DataScopeMiddlewareConfig struct {
	// RoleRepository loads the roles carrying data scope configurations.
	RoleRepository identity.RoleRepository
	// SkipPaths bypass scope loading entirely.
	SkipPaths []string
	Logger    *zap.Logger
}

// DefaultDataScopeConfig skips the unauthenticated endpoints.
func DefaultDataScopeConfig(roleRepo identity.RoleRepository) DataScopeMiddlewareConfig {
	return DataScopeMiddlewareConfig{
		RoleRepository: roleRepo,
		SkipPaths: []string{
			"/health",
			"/api/v1/ping",
			"/api/v1/auth/login",
			"/api/v1/auth/refresh",
		},
	}
}

// DataScopeMiddlewareWithConfig loads the caller's roles and their data
// scopes into the request context so repositories can narrow list queries,
// e.g. branch staff only see loans and approval requests of their own
// branches. Runs after JWTAuthMiddleware as it reads role IDs from the
// JWT claims.
func DataScopeMiddlewareWithConfig(cfg DataScopeMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, skip := range cfg.SkipPaths {
			if c.Request.URL.Path == skip {
				c.Next()
				return
			}
		}

		roleIDs := parseRoleIDs(GetJWTRoleIDs(c))
		if len(roleIDs) == 0 {
			// No roles means no scope restrictions.
			c.Next()
			return
		}

		ctx := c.Request.Context()
		roles, err := loadScopedRoles(cfg, c, roleIDs)
		if err != nil {
			// Scoping degrades to unrestricted rather than blocking the request.
			c.Next()
			return
		}

		// Repositories read the scopes back out of the request context.
		c.Request = c.Request.WithContext(datascope.WithDataScopes(ctx, roles))
		c.Next()
	}
}

func parseRoleIDs(raw []string) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		if id, err := uuid.Parse(s); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func loadScopedRoles(cfg DataScopeMiddlewareConfig, c *gin.Context, roleIDs []uuid.UUID) ([]identity.Role, error) {
	ctx := c.Request.Context()

	rolePtrs, err := cfg.RoleRepository.FindByIDs(ctx, roleIDs)
	if err != nil {
		if cfg.Logger != nil {
			cfg.Logger.Error("failed to load roles for data scoping", zap.Error(err))
		}
		return nil, err
	}

	roles := make([]identity.Role, 0, len(rolePtrs))
	for _, role := range rolePtrs {
		if role == nil {
			continue
		}
		if err := cfg.RoleRepository.LoadPermissionsAndDataScopes(ctx, role); err != nil {
			// A role without its scopes still grants nothing extra, so the
			// request proceeds with whatever loaded.
			if cfg.Logger != nil {
				cfg.Logger.Warn("failed to load data scopes for role",
					zap.String("role_id", role.ID.String()),
					zap.Error(err),
				)
			}
		}
		roles = append(roles, *role)
	}
	return roles, nil
}
