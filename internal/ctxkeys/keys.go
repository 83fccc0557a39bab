// Package ctxkeys holds the context keys shared by the transports.
package ctxkeys

// Key is the type for all context keys in the application.
// Using a dedicated type prevents collisions with keys from other packages.
type Key string

const (
	// KeyUser holds the acting *request.User
	KeyUser Key = "user"
	// KeyClaims holds the verified token claims
	KeyClaims Key = "claims"
)
