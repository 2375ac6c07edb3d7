package auth

import "time"

// Config controls admin token issuance.
type Config struct {
	Secret   string
	Issuer   string
	TokenTTL time.Duration
}

// Claims are the validated contents of an admin token.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
}

// TokenResponse is returned when a token is issued.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}
