package auth

import "errors"

var (
	ErrUserNotFound = errors.New("auth: user not found")
	ErrUnauthorized = errors.New("auth: unauthorized")
)
