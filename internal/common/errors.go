// Package common defines shared constants and sentinel errors used across
// client and server layers of wiliyo. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Auth gate errors. Every one of them is terminal for the session.
	ErrAuthTimeout      = errors.New("auth timeout")
	ErrInvalidChoice    = errors.New("invalid choice")
	ErrUserNotFound     = errors.New("user not found")
	ErrBadCredentials   = errors.New("bad credentials")
	ErrUsernameTaken    = errors.New("username taken")
	ErrPasswordRequired = errors.New("password required")
	ErrAlreadyLoggedIn  = errors.New("already logged in")

	// Chat loop errors.
	ErrPeerDisconnected = errors.New("peer disconnected")
)
