package auth

import (
	"context"
	"strings"
	"time"
)

// User is an identity owned by the identity provider. Status, RegisteredAt
// and LastLogin are nullable and read-only for this service.
type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Status       *string    `json:"status"`
	RegisteredAt *time.Time `json:"registered_at"`
	LastLogin    *time.Time `json:"last_login"`
}

// Directory looks users up. Email matching is case-insensitive.
type Directory interface {
	GetUser(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	UsersByID(ctx context.Context, ids []string) ([]User, error)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
