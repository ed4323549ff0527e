// Package access holds the single authorization rule of the pantry: a record
// may only be read or changed by the user who owns it.
//
// There is no override here. User.IsSuperuser exists on the
// account but does not widen item access; an elevated capability would be a
// separate, explicit check.
package access

import "context"

// Owned is anything that records its owner's ID.
type Owned interface {
	RecordOwner() string
}

// Caller is the verified identity making a request.
type Caller struct {
	UserID    string
	Superuser bool
}

// Authorize reports whether caller may access record.
// An empty caller ID never matches, even against an ownerless record.
func Authorize(record Owned, caller Caller) bool {
	if caller.UserID == "" {
		return false
	}
	return record.RecordOwner() == caller.UserID
}

type contextKey struct{}

// WithCaller stores the caller in ctx. The auth middleware does this once the
// bearer token has been verified.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// CallerFromContext returns the caller stored by WithCaller.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(contextKey{}).(Caller)
	return c, ok && c.UserID != ""
}
