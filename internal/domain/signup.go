package domain

// SignupState tags the lifecycle of a pending signup entry. The third state,
// consumed, is represented by deletion of the entry at registration time.
type SignupState string

const (
	SignupStatePending  SignupState = "pending"
	SignupStateVerified SignupState = "verified"
)

// PendingSignup is the transient, not-yet-persisted signup state for an
// identifier with no matching user. It lives only in a TTL-backed cache keyed
// by a digest of the identifier; expired entries are evicted by the cache
// itself, there is no background sweep.
//
// The pending→verified transition happens exactly once, atomically, when the
// submitted code checks out. A permanent User row is created only when the
// entry is consumed by registration.
type PendingSignup struct {
	Identifier  string      `json:"identifier"`
	IsEmail     bool        `json:"is_email"`
	CodeDigest  string      `json:"code_digest,omitempty"`
	ProviderSID string      `json:"provider_sid,omitempty"`
	State       SignupState `json:"state"`
	ExpiresAt   int64       `json:"expires_at"`
}

// Expired reports whether the local expiry window has elapsed at the given
// Unix time. The cache TTL usually evicts first; this guards the gap.
func (p *PendingSignup) Expired(now int64) bool {
	return p.ExpiresAt < now
}
