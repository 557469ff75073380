// Package delivery routes bot-initiated messages, such as reminders, to the
// transport that owns a user.
package delivery

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/user/claimline/internal/types"
)

// Handler pushes messages to one user of a transport.
type Handler func(ctx context.Context, user types.UserKey, msgs ...types.OutboundMessage) error

// Registry routes messages to the appropriate delivery handler based on
// user key prefix (e.g. "line:", "telegram:").
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty delivery registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler for user keys starting with prefix. A later
// registration for the same prefix replaces the earlier one.
func (r *Registry) Register(prefix string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[prefix] = handler
}

// Prefixes lists the registered prefixes.
func (r *Registry) Prefixes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for p := range r.handlers {
		out = append(out, p)
	}
	return out
}

// Deliver finds the handler with the longest prefix matching user and calls
// it. Returns an error if no handler is registered for the user's transport.
func (r *Registry) Deliver(ctx context.Context, user types.UserKey, msgs ...types.OutboundMessage) error {
	r.mu.RLock()
	var (
		best    Handler
		bestLen = -1
	)
	for prefix, handler := range r.handlers {
		if strings.HasPrefix(string(user), prefix) && len(prefix) > bestLen {
			best, bestLen = handler, len(prefix)
		}
	}
	r.mu.RUnlock()
	if best == nil {
		return fmt.Errorf("no delivery handler for user: %s", user)
	}
	return best(ctx, user, msgs...)
}
