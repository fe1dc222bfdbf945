package service

import "errors"

var (
	// ErrAuthFailed covers every rejected login, whatever the reason.
	ErrAuthFailed = errors.New("invalid login or password")
	// ErrUpstreamUnavailable marks a failed call to the external directory.
	ErrUpstreamUnavailable = errors.New("external directory unavailable")
	ErrInvalidToken        = errors.New("invalid or expired token")
)
