package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the JWT claims the host application's session layer signs
// for a collaboration client. The core trusts these claims for the lifetime
// of a connection and performs no per-event re-authentication.
type Payload struct {
	// StandardClaims embeds Exp, Iat, and Iss, used for validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// UserID is the host application's identifier for the account.
	UserID string `json:"user_id"`

	// DisplayName is the name shown to other room members in presence,
	// typing, and message events.
	DisplayName string `json:"display_name"`
}
