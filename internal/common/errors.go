// Package common defines shared constants and sentinel errors used across
// glucolink components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Configuration / credential lifecycle errors (user-actionable).
	ErrNotConfigured      = errors.New("credentials not configured")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrTermsOfUse         = errors.New("terms of use re-acceptance required")

	// Protocol-level rejections.
	ErrMinimumVersion = errors.New("client version below server minimum")
	ErrMissingHeader  = errors.New("required request header missing")

	// Storage integrity errors. Never downgraded to "not configured":
	// a store that cannot be read is distinguishable from an empty one.
	ErrCorruptedStore = errors.New("stored envelope is malformed")
	ErrIntegrity      = errors.New("stored envelope failed integrity check")

	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Key custody errors (degraded mode, not fatal).
	ErrSecretStoreUnavailable = errors.New("platform secret store unavailable")

	// Session errors.
	ErrUnauthorized   = errors.New("unauthorized")
	ErrRegionMismatch = errors.New("stored token region mismatch")
	ErrRedirectLoop   = errors.New("login redirected more than once")

	// Transport errors (transient, bounded retry at the transport layer).
	ErrUnavailable = errors.New("service unavailable")

	// Data-sharing errors.
	ErrNoConnections = errors.New("account has no data-sharing connections")
)
