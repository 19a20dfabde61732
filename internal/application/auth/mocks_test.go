package auth

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/asaancar/identity-api/internal/domain"
)

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u := args.Get(0); u != nil {
		return u.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u := args.Get(0); u != nil {
		return u.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserStore) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	args := m.Called(ctx, phone)
	if u := args.Get(0); u != nil {
		return u.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserStore) GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	args := m.Called(ctx, identifier)
	if u := args.Get(0); u != nil {
		return u.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserStore) Put(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *mockUserStore) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	return m.Called(ctx, userID, updates).Error(0)
}

type mockChallengeStore struct{ mock.Mock }

func (m *mockChallengeStore) Put(ctx context.Context, c *domain.Challenge) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockChallengeStore) Get(ctx context.Context, userID string) (*domain.Challenge, error) {
	args := m.Called(ctx, userID)
	if c := args.Get(0); c != nil {
		return c.(*domain.Challenge), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockChallengeStore) Consume(ctx context.Context, userID, attr, expected string, now int64) error {
	return m.Called(ctx, userID, attr, expected, now).Error(0)
}

type mockSignupStore struct{ mock.Mock }

func (m *mockSignupStore) Put(ctx context.Context, entry *domain.PendingSignup, ttl time.Duration) error {
	return m.Called(ctx, entry, ttl).Error(0)
}

func (m *mockSignupStore) Get(ctx context.Context, identifier string) (*domain.PendingSignup, error) {
	args := m.Called(ctx, identifier)
	if e := args.Get(0); e != nil {
		return e.(*domain.PendingSignup), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSignupStore) MarkVerified(ctx context.Context, identifier, attr, expected string, ttl time.Duration) error {
	return m.Called(ctx, identifier, attr, expected, ttl).Error(0)
}

func (m *mockSignupStore) Delete(ctx context.Context, identifier string) error {
	return m.Called(ctx, identifier).Error(0)
}

type mockSessionStore struct{ mock.Mock }

func (m *mockSessionStore) Put(ctx context.Context, s *domain.Session) error {
	return m.Called(ctx, s).Error(0)
}

type mockDeviceStore struct{ mock.Mock }

func (m *mockDeviceStore) GetByUUID(ctx context.Context, uuid string) (*domain.Device, error) {
	args := m.Called(ctx, uuid)
	if d := args.Get(0); d != nil {
		return d.(*domain.Device), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDeviceStore) Put(ctx context.Context, d *domain.Device) error {
	return m.Called(ctx, d).Error(0)
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(to, subject, body string) error {
	return m.Called(to, subject, body).Error(0)
}

type mockSMSSender struct{ mock.Mock }

func (m *mockSMSSender) SendSMS(ctx context.Context, to, message string) error {
	return m.Called(ctx, to, message).Error(0)
}

type mockVerifier struct{ mock.Mock }

func (m *mockVerifier) StartVerification(ctx context.Context, phone string) (string, error) {
	args := m.Called(ctx, phone)
	return args.String(0), args.Error(1)
}

func (m *mockVerifier) CheckVerification(ctx context.Context, phone, code string) (string, error) {
	args := m.Called(ctx, phone, code)
	return args.String(0), args.Error(1)
}

type mockJWTSigner struct{ mock.Mock }

func (m *mockJWTSigner) Sign(userID, deviceID, role, sessionID string) (string, error) {
	args := m.Called(userID, deviceID, role, sessionID)
	return args.String(0), args.Error(1)
}
