package models

import "time"

// LoginRequest holds administrator credentials forwarded to the registration server.
type LoginRequest struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

// AdminSession is the registration server's answer to a successful login.
type AdminSession struct {
	Message  string `json:"message"`
	Token    string `json:"token"`
	Username string `json:"username"`
}

// TokenStatus describes the bearer token held for a portal session.
type TokenStatus struct {
	Present   bool       `json:"present"`
	Expired   bool       `json:"expired"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Subject   string     `json:"subject,omitempty"`
}

// Authenticated reports whether the token can be presented to the admin endpoint.
func (s TokenStatus) Authenticated() bool {
	return s.Present && !s.Expired
}
