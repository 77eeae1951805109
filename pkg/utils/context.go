package utils

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	IdentityKey contextKey = "identity"
)

const RoleAdmin = "admin"

// Identity is the resolved caller: who is buying, and where to send the receipt.
type Identity struct {
	UserID uuid.UUID
	Email  string
	Name   string
	Role   string
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

func SetIdentityContext(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

func GetIdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(IdentityKey).(Identity)
	if !ok || identity.UserID == uuid.Nil {
		return Identity{}, false
	}
	return identity, true
}
