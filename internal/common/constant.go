// Package common contains shared constants and sentinel errors used across
// glucolink components.
package common

// Header names required by the upstream LibreLinkUp-style API.
const (
	// AuthorizationHeaderName carries the bearer session token.
	AuthorizationHeaderName = "authorization"

	// AccountIDHeaderName carries the SHA-256 hash of the upstream user id.
	// The server rejects authenticated calls that omit it.
	AccountIDHeaderName = "account-id"

	// ProductHeaderName identifies the client product line.
	ProductHeaderName = "product"

	// VersionHeaderName carries the client protocol version. Servers enforce
	// a minimum; see ErrMinimumVersion.
	VersionHeaderName = "version"
)
