package auth

import "errors"

var (
	ErrNotFound           = errors.New("auth: not found")
	ErrMissingFields      = errors.New("auth: email and password are required")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrTokenExpired       = errors.New("auth: token expired")
	ErrInvalidToken       = errors.New("auth: invalid token")
	ErrUnauthorized       = errors.New("auth: unauthorized")
	ErrServer             = errors.New("auth: internal error")
)
