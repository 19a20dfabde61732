package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrValidation   = errors.New("validation failed")

	// OTP flow errors. Both map to 400; neither is retried automatically.
	ErrInvalidCode = errors.New("invalid code")
	ErrExpiredCode = errors.New("expired code")

	// ErrUnverifiedIdentity blocks registration for identifiers whose pending
	// signup entry is absent, unverified, or expired.
	ErrUnverifiedIdentity = errors.New("identity not verified")

	// Password login errors.
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrPendingVerification = errors.New("account pending verification")

	// Provider boundary errors.
	ErrConfiguration = errors.New("provider not configured")
	ErrDelivery      = errors.New("delivery failed")
)
