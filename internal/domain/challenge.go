package domain

// Challenge channels.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Stored attribute names for the code fields. The conditional consume in the
// challenge store and the atomic transition in the signup store both match on
// one of these.
const (
	FieldCodeDigest  = "code_digest"
	FieldProviderSID = "provider_sid"
)

// Challenge is a pending OTP challenge for an existing user. It lives in its
// own table keyed by user_id, never as loose columns on the user row, so the
// user's invariants stay independent of in-flight verification attempts.
// At most one challenge per user (overwrite semantics).
//
// Email challenges store a SHA-256 digest of the locally generated 6-digit
// code. SMS challenges store the opaque verification-session handle returned
// by the external provider; the provider owns the code, ExpiresAt is a local
// ceiling layered on top of the provider's own expiry.
//
// ExpiresAt doubles as the DynamoDB TTL attribute (Unix seconds).
type Challenge struct {
	UserID      string `json:"user_id" dynamodbav:"user_id"`
	Channel     string `json:"channel" dynamodbav:"channel"`
	CodeDigest  string `json:"-" dynamodbav:"code_digest"`
	ProviderSID string `json:"-" dynamodbav:"provider_sid"`
	ExpiresAt   int64  `json:"expires_at" dynamodbav:"expires_at"`
}

// Expired reports whether the local ceiling has elapsed at the given Unix time.
func (c *Challenge) Expired(now int64) bool {
	return c.ExpiresAt < now
}
