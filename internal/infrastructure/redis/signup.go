package redisstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/asaancar/identity-api/internal/config"
	"github.com/asaancar/identity-api/internal/domain"
)

const keyPrefix = "signup:"

// NewClient creates a Redis client from config.
func NewClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// SignupStore keeps pending signup entries in Redis as JSON blobs with a TTL.
// Entries are keyed by a SHA-256 digest of the identifier so raw emails and
// phone numbers never appear in the keyspace. Expired entries are evicted by
// Redis itself.
type SignupStore struct {
	rdb *redis.Client
}

func NewSignupStore(rdb *redis.Client) *SignupStore {
	return &SignupStore{rdb: rdb}
}

// verifyScript flips a pending entry to verified in a single atomic step:
// the stored field must still hold the expected value and the entry must
// still be in the pending state. Anything else leaves the entry untouched.
var verifyScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then return 'missing' end
local e = cjson.decode(raw)
if e['state'] ~= 'pending' then return 'state' end
if e[ARGV[1]] ~= ARGV[2] then return 'mismatch' end
e['state'] = 'verified'
e['expires_at'] = tonumber(ARGV[3])
redis.call('SET', KEYS[1], cjson.encode(e), 'EX', tonumber(ARGV[4]))
return 'ok'
`)

func (s *SignupStore) Put(ctx context.Context, entry *domain.PendingSignup, ttl time.Duration) error {
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal pending signup: %w", err)
	}
	return s.rdb.Set(ctx, Key(entry.Identifier), b, ttl).Err()
}

func (s *SignupStore) Get(ctx context.Context, identifier string) (*domain.PendingSignup, error) {
	b, err := s.rdb.Get(ctx, Key(identifier)).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("pending signup not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var entry domain.PendingSignup
	if err := json.Unmarshal(b, &entry); err != nil {
		return nil, fmt.Errorf("unmarshal pending signup: %w", err)
	}
	return &entry, nil
}

// MarkVerified transitions the entry for identifier from pending to verified,
// provided the stored attribute (code_digest or provider_sid) still equals
// expected. The transition runs server-side as one atomic script, so two
// racing verify calls cannot both succeed and a resend racing a verify cannot
// interleave mid-check. The verified entry gets the extended TTL that covers
// the window until registration consumes it.
func (s *SignupStore) MarkVerified(ctx context.Context, identifier, attr, expected string, ttl time.Duration) error {
	expiresAt := time.Now().Add(ttl).Unix()
	res, err := verifyScript.Run(ctx, s.rdb, []string{Key(identifier)},
		attr, expected, expiresAt, int(ttl.Seconds())).Text()
	if err != nil {
		return err
	}
	switch res {
	case "ok":
		return nil
	case "missing":
		return fmt.Errorf("pending signup not found: %w", domain.ErrNotFound)
	default: // "state" or "mismatch"
		return fmt.Errorf("pending signup %s: %w", res, domain.ErrInvalidCode)
	}
}

func (s *SignupStore) Delete(ctx context.Context, identifier string) error {
	return s.rdb.Del(ctx, Key(identifier)).Err()
}

// Key derives the cache key for an identifier.
func Key(identifier string) string {
	sum := sha256.Sum256([]byte(identifier))
	return keyPrefix + hex.EncodeToString(sum[:])
}
