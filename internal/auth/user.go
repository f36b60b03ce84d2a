package auth

import (
	"context"
)

type userKeyType struct{}

var userKey userKeyType

// User is the opaque caller identity attached to every request.
type User struct {
	ID string
}

func UserFromContext(ctx context.Context) (User, bool) {
	val := ctx.Value(userKey)
	if val == nil {
		return User{}, false
	}
	return val.(User), true
}

// MustHaveUser returns the user from the context and panics if absent.
// Handlers are always mounted behind the Authenticator middleware, so a
// missing user is a programming error.
func MustHaveUser(ctx context.Context) User {
	u, ok := UserFromContext(ctx)
	if !ok {
		panic("missing user in context")
	}
	return u
}

func NewUserContext(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey, u)
}
