package approval

import (
	"context"
	"sync"

	"github.com/mfi/backend/internal/domain/approval"
)

// CompletionHandler receives the terminal outcome of an approval request and
// applies it to the governed entity. Implementations live with the entity's
// own application service (loan approval, rate change, write-off).
type CompletionHandler interface {
	OnApproved(ctx context.Context, request *approval.ApprovalRequest) error
	OnRejected(ctx context.Context, request *approval.ApprovalRequest) error
	OnCancelled(ctx context.Context, request *approval.ApprovalRequest) error
}

// CompletionRegistry maps entity types to their completion handlers. Handlers
// register themselves at wiring time; dispatch is keyed by the request's
// entity type so the engine never imports the packages it governs.
type CompletionRegistry struct {
	mu       sync.RWMutex
	handlers map[approval.EntityType]CompletionHandler
}

// NewCompletionRegistry creates an empty registry
func NewCompletionRegistry() *CompletionRegistry {
	return &CompletionRegistry{
		handlers: make(map[approval.EntityType]CompletionHandler),
	}
}

// Register binds a handler to an entity type, replacing any previous binding
func (r *CompletionRegistry) Register(entityType approval.EntityType, handler CompletionHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[entityType] = handler
}

// HandlerFor returns the handler for an entity type, or nil
func (r *CompletionRegistry) HandlerFor(entityType approval.EntityType) CompletionHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[entityType]
}
