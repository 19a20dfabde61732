package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/asaancar/identity-api/internal/domain"
	"github.com/asaancar/identity-api/internal/infrastructure/smtp"
	"github.com/asaancar/identity-api/internal/infrastructure/sns"
	"github.com/asaancar/identity-api/internal/infrastructure/verify"
	pkgdevice "github.com/asaancar/identity-api/internal/pkg/device"
	"github.com/asaancar/identity-api/internal/pkg/id"
	"github.com/asaancar/identity-api/internal/pkg/otp"
	pkgtoken "github.com/asaancar/identity-api/internal/pkg/token"
	"golang.org/x/crypto/bcrypt"
)

type SendLoginOTPRequest struct {
	PhoneNumber string  `json:"phone_number" validate:"required"`
	DeviceUUID  *string `json:"device_uuid"`
}

type SendSignupOTPRequest struct {
	Email       *string `json:"email" validate:"omitempty,email"`
	PhoneNumber *string `json:"phone_number"`
	DeviceUUID  *string `json:"device_uuid"`
}

type VerifyOTPRequest struct {
	Identifier string  `json:"identifier" validate:"required"`
	OTP        string  `json:"otp" validate:"required,len=6,numeric"`
	DeviceUUID *string `json:"device_uuid"`
}

type RegisterRequest struct {
	Name        string  `json:"name" validate:"required"`
	Email       *string `json:"email" validate:"omitempty,email"`
	PhoneNumber *string `json:"phone_number"`
	Password    *string `json:"password" validate:"omitempty,min=8,max=72"`
	Role        string  `json:"role" validate:"required"`
	DeviceUUID  *string `json:"device_uuid"`
}

type SetPasswordRequest struct {
	Identifier           string `json:"identifier" validate:"required"`
	Password             string `json:"password" validate:"required,min=8,max=72"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required"`
}

// SendOTPResult reports where the code went. The session fields are set only
// when the demo bypass fired and the caller is already logged in.
type SendOTPResult struct {
	Identifier     string
	IsEmail        bool
	IsExistingUser bool
	Bearer         string
	RefreshToken   string
	Session        *domain.Session
}

// VerifyOTPResult carries the minted session for existing users. New-user
// signup verification flips the pending entry to verified and issues nothing.
type VerifyOTPResult struct {
	IsExistingUser bool
	Bearer         string
	RefreshToken   string
	Session        *domain.Session
}

type RegisterResult struct {
	Bearer       string
	RefreshToken string
	Session      *domain.Session
	PasswordSet  bool
}

type Service interface {
	SendLoginOTP(ctx context.Context, req SendLoginOTPRequest) (*SendOTPResult, error)
	VerifyLoginOTP(ctx context.Context, req VerifyOTPRequest) (*VerifyOTPResult, error)
	SendSignupOTP(ctx context.Context, req SendSignupOTPRequest) (*SendOTPResult, error)
	VerifySignupOTP(ctx context.Context, req VerifyOTPRequest) (*VerifyOTPResult, error)
	Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error)
	SetPassword(ctx context.Context, req SetPasswordRequest) error
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type challengeStore interface {
	Put(ctx context.Context, c *domain.Challenge) error
	Get(ctx context.Context, userID string) (*domain.Challenge, error)
	Consume(ctx context.Context, userID, attr, expected string, now int64) error
}

type signupStore interface {
	Put(ctx context.Context, entry *domain.PendingSignup, ttl time.Duration) error
	Get(ctx context.Context, identifier string) (*domain.PendingSignup, error)
	MarkVerified(ctx context.Context, identifier, attr, expected string, ttl time.Duration) error
	Delete(ctx context.Context, identifier string) error
}

type sessionStore interface {
	Put(ctx context.Context, s *domain.Session) error
}

type jwtSigner interface {
	Sign(userID, deviceID, role, sessionID string) (string, error)
}

type service struct {
	userRepo          userStore
	challengeRepo     challengeStore
	signupStore       signupStore
	sessionRepo       sessionStore
	deviceRepo        pkgdevice.Store
	mailer            smtp.Mailer
	smsSender         sns.SMSSender
	verifier          verify.Provider
	jwtProvider       jwtSigner
	refreshTokenDur   time.Duration
	otpTTL            time.Duration
	signupVerifiedTTL time.Duration
	demoPhone         string
}

type ServiceDeps struct {
	UserRepo          userStore
	ChallengeRepo     challengeStore
	SignupStore       signupStore
	SessionRepo       sessionStore
	DeviceRepo        pkgdevice.Store
	Mailer            smtp.Mailer
	SMSSender         sns.SMSSender
	Verifier          verify.Provider
	JWTProvider       jwtSigner
	RefreshTokenDur   time.Duration
	OTPTTL            time.Duration
	SignupVerifiedTTL time.Duration
	DemoPhone         string
}

func NewService(deps ServiceDeps) Service {
	return &service{
		userRepo:          deps.UserRepo,
		challengeRepo:     deps.ChallengeRepo,
		signupStore:       deps.SignupStore,
		sessionRepo:       deps.SessionRepo,
		deviceRepo:        deps.DeviceRepo,
		mailer:            deps.Mailer,
		smsSender:         deps.SMSSender,
		verifier:          deps.Verifier,
		jwtProvider:       deps.JWTProvider,
		refreshTokenDur:   deps.RefreshTokenDur,
		otpTTL:            deps.OTPTTL,
		signupVerifiedTTL: deps.SignupVerifiedTTL,
		demoPhone:         deps.DemoPhone,
	}
}

// SendLoginOTP dispatches a code to an existing user's phone. The demo
// identity skips the code exchange entirely and is logged in on the spot.
func (s *service) SendLoginOTP(ctx context.Context, req SendLoginOTPRequest) (*SendOTPResult, error) {
	u, err := s.userRepo.GetByPhone(ctx, req.PhoneNumber)
	if err != nil {
		return nil, fmt.Errorf("no account for phone number: %w", domain.ErrNotFound)
	}
	if s.isDemo(req.PhoneNumber) {
		return s.demoLogin(ctx, u, req.PhoneNumber, req.DeviceUUID)
	}
	if err := s.sendChallenge(ctx, u, req.PhoneNumber, false); err != nil {
		return nil, err
	}
	return &SendOTPResult{Identifier: req.PhoneNumber, IsExistingUser: true}, nil
}

// VerifyLoginOTP checks a submitted code against the user's pending
// challenge and mints a session on success. Consumption is atomic: a replay
// of the same code, or the loser of two concurrent submissions, fails with
// an invalid-code error.
func (s *service) VerifyLoginOTP(ctx context.Context, req VerifyOTPRequest) (*VerifyOTPResult, error) {
	u, err := s.userRepo.GetByIdentifier(ctx, req.Identifier)
	if err != nil {
		return nil, fmt.Errorf("no account for identifier: %w", domain.ErrNotFound)
	}
	if err := s.checkChallenge(ctx, u, req.Identifier, req.OTP); err != nil {
		return nil, err
	}
	if err := s.markVerified(ctx, u); err != nil {
		return nil, err
	}
	sess, bearer, refresh, err := s.issueSession(ctx, u, req.DeviceUUID)
	if err != nil {
		return nil, err
	}
	return &VerifyOTPResult{IsExistingUser: true, Bearer: bearer, RefreshToken: refresh, Session: sess}, nil
}

// SendSignupOTP classifies the identifier. Existing identifiers are silently
// reclassified as a login send (is_existing_user reports this back); new
// identifiers get a transient pending-signup entry and no user row.
func (s *service) SendSignupOTP(ctx context.Context, req SendSignupOTPRequest) (*SendOTPResult, error) {
	identifier, isEmail, err := pickIdentifier(req.Email, req.PhoneNumber)
	if err != nil {
		return nil, err
	}

	u, lookupErr := s.lookup(ctx, identifier, isEmail)
	if lookupErr == nil {
		if !isEmail && s.isDemo(identifier) {
			return s.demoLogin(ctx, u, identifier, req.DeviceUUID)
		}
		if err := s.sendChallenge(ctx, u, identifier, isEmail); err != nil {
			return nil, err
		}
		return &SendOTPResult{Identifier: identifier, IsEmail: isEmail, IsExistingUser: true}, nil
	}

	entry := &domain.PendingSignup{
		Identifier: identifier,
		IsEmail:    isEmail,
		State:      domain.SignupStatePending,
		ExpiresAt:  time.Now().Add(s.otpTTL).Unix(),
	}
	if isEmail {
		code, err := otp.NewCode()
		if err != nil {
			return nil, err
		}
		entry.CodeDigest = otp.Digest(code)
		if err := s.signupStore.Put(ctx, entry, s.otpTTL); err != nil {
			return nil, err
		}
		// The entry is saved before the send: if delivery fails the code is
		// still redeemable and the client simply re-invokes this endpoint.
		if err := s.mailer.SendEmail(identifier, "Your AsaanCar verification code", "Your verification code is "+code); err != nil {
			slog.Error("signup otp email send failed", "err", err)
			return nil, fmt.Errorf("could not send verification email: %w", domain.ErrDelivery)
		}
	} else {
		sid, err := s.startSMSVerification(ctx, identifier)
		if err != nil {
			return nil, err
		}
		entry.ProviderSID = sid
		if err := s.signupStore.Put(ctx, entry, s.otpTTL); err != nil {
			return nil, err
		}
	}
	return &SendOTPResult{Identifier: identifier, IsEmail: isEmail}, nil
}

// VerifySignupOTP validates a signup code. For existing identifiers this
// collapses into a login verification and returns a session; for new
// identifiers it atomically flips the pending entry to verified with an
// extended TTL and issues nothing — registration is a separate call.
func (s *service) VerifySignupOTP(ctx context.Context, req VerifyOTPRequest) (*VerifyOTPResult, error) {
	if _, err := s.userRepo.GetByIdentifier(ctx, req.Identifier); err == nil {
		return s.VerifyLoginOTP(ctx, req)
	}

	entry, err := s.signupStore.Get(ctx, req.Identifier)
	if err != nil {
		return nil, fmt.Errorf("no pending signup for identifier: %w", domain.ErrInvalidCode)
	}
	now := time.Now().Unix()
	if entry.Expired(now) {
		return nil, fmt.Errorf("signup code expired: %w", domain.ErrExpiredCode)
	}

	var attr, expected string
	if entry.IsEmail {
		digest := otp.Digest(req.OTP)
		if entry.CodeDigest != digest {
			return nil, fmt.Errorf("signup code mismatch: %w", domain.ErrInvalidCode)
		}
		attr, expected = domain.FieldCodeDigest, digest
	} else {
		if err := s.checkSMSVerification(ctx, req.Identifier, req.OTP); err != nil {
			return nil, err
		}
		attr, expected = domain.FieldProviderSID, entry.ProviderSID
	}

	if err := s.signupStore.MarkVerified(ctx, req.Identifier, attr, expected, s.signupVerifiedTTL); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("pending signup gone: %w", domain.ErrInvalidCode)
		}
		return nil, err
	}
	return &VerifyOTPResult{IsExistingUser: false}, nil
}

// Register consumes a verified pending-signup entry and creates the durable
// user. This is the enforcement point: no verified entry, no account.
func (s *service) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if req.Role != domain.RoleUser && req.Role != domain.RoleStoreOwner {
		return nil, fmt.Errorf("invalid role: %w", domain.ErrValidation)
	}

	// The verified entry lives under whichever identifier completed the OTP
	// challenge; a registration may supply both fields, so try each.
	candidates := registerIdentifiers(req.Email, req.PhoneNumber)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("email or phone_number is required: %w", domain.ErrValidation)
	}
	identifier, isEmail, entry := "", false, (*domain.PendingSignup)(nil)
	for _, cand := range candidates {
		if e, err := s.signupStore.Get(ctx, cand.value); err == nil {
			identifier, isEmail, entry = cand.value, cand.isEmail, e
			break
		}
	}
	if entry == nil {
		return nil, fmt.Errorf("identifier has no completed verification: %w", domain.ErrUnverifiedIdentity)
	}
	if entry.State != domain.SignupStateVerified || entry.Expired(time.Now().Unix()) {
		return nil, fmt.Errorf("identifier has no completed verification: %w", domain.ErrUnverifiedIdentity)
	}
	if _, err := s.lookup(ctx, identifier, isEmail); err == nil {
		return nil, fmt.Errorf("account already exists: %w", domain.ErrConflict)
	}

	var passwordHash string
	if req.Password != nil && *req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		passwordHash = string(hash)
	}

	now := time.Now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.PhoneNumber,
		PasswordHash: passwordHash,
		Role:         req.Role,
		Verified:     true,
		Enable:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if isEmail {
		u.EmailVerifiedAt = &now
	}
	if err := s.userRepo.Put(ctx, u); err != nil {
		return nil, err
	}
	if err := s.signupStore.Delete(ctx, identifier); err != nil {
		slog.Warn("failed to delete pending signup entry", "err", err)
	}

	s.sendWelcome(ctx, u)

	sess, bearer, refresh, err := s.issueSession(ctx, u, req.DeviceUUID)
	if err != nil {
		return nil, err
	}
	return &RegisterResult{
		Bearer:       bearer,
		RefreshToken: refresh,
		Session:      sess,
		PasswordSet:  passwordHash != "",
	}, nil
}

// SetPassword attaches or replaces a password on an existing account. No
// current-password check here: the caller reached this through a completed
// OTP challenge, which already proved control of the channel.
func (s *service) SetPassword(ctx context.Context, req SetPasswordRequest) error {
	if req.Password != req.PasswordConfirmation {
		return fmt.Errorf("password confirmation does not match: %w", domain.ErrValidation)
	}
	u, err := s.userRepo.GetByIdentifier(ctx, req.Identifier)
	if err != nil {
		return fmt.Errorf("no account for identifier: %w", domain.ErrNotFound)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.userRepo.Update(ctx, u.UserID, map[string]interface{}{"password_hash": string(hash)})
}

// --- internals ---

func (s *service) isDemo(phone string) bool {
	return s.demoPhone != "" && phone == s.demoPhone
}

func (s *service) demoLogin(ctx context.Context, u *domain.User, phone string, deviceUUID *string) (*SendOTPResult, error) {
	if err := s.markVerified(ctx, u); err != nil {
		return nil, err
	}
	sess, bearer, refresh, err := s.issueSession(ctx, u, deviceUUID)
	if err != nil {
		return nil, err
	}
	return &SendOTPResult{
		Identifier:     phone,
		IsExistingUser: true,
		Bearer:         bearer,
		RefreshToken:   refresh,
		Session:        sess,
	}, nil
}

// sendChallenge stores a fresh challenge for the user (overwriting any
// previous one) and dispatches it on the matching channel.
func (s *service) sendChallenge(ctx context.Context, u *domain.User, identifier string, isEmail bool) error {
	expiresAt := time.Now().Add(s.otpTTL).Unix()
	if isEmail {
		code, err := otp.NewCode()
		if err != nil {
			return err
		}
		c := &domain.Challenge{
			UserID:     u.UserID,
			Channel:    domain.ChannelEmail,
			CodeDigest: otp.Digest(code),
			ExpiresAt:  expiresAt,
		}
		if err := s.challengeRepo.Put(ctx, c); err != nil {
			return err
		}
		if err := s.mailer.SendEmail(identifier, "Your AsaanCar login code", "Your login code is "+code); err != nil {
			slog.Error("otp email send failed", "user_id", u.UserID, "err", err)
			return fmt.Errorf("could not send login code: %w", domain.ErrDelivery)
		}
		return nil
	}

	sid, err := s.startSMSVerification(ctx, identifier)
	if err != nil {
		return err
	}
	return s.challengeRepo.Put(ctx, &domain.Challenge{
		UserID:      u.UserID,
		Channel:     domain.ChannelSMS,
		ProviderSID: sid,
		ExpiresAt:   expiresAt,
	})
}

// checkChallenge validates the submitted code and consumes the challenge
// atomically. The branch is picked by exact match against the stored email;
// everything else goes through the SMS provider.
func (s *service) checkChallenge(ctx context.Context, u *domain.User, identifier, code string) error {
	ch, err := s.challengeRepo.Get(ctx, u.UserID)
	if err != nil {
		return fmt.Errorf("no pending challenge: %w", domain.ErrInvalidCode)
	}
	now := time.Now().Unix()
	if ch.Expired(now) {
		return fmt.Errorf("code expired: %w", domain.ErrExpiredCode)
	}

	if u.Email != nil && *u.Email == identifier {
		if ch.Channel != domain.ChannelEmail || ch.CodeDigest != otp.Digest(code) {
			return fmt.Errorf("code mismatch: %w", domain.ErrInvalidCode)
		}
		return s.challengeRepo.Consume(ctx, u.UserID, domain.FieldCodeDigest, ch.CodeDigest, now)
	}

	if err := s.checkSMSVerification(ctx, identifier, code); err != nil {
		return err
	}
	return s.challengeRepo.Consume(ctx, u.UserID, domain.FieldProviderSID, ch.ProviderSID, now)
}

func (s *service) startSMSVerification(ctx context.Context, phone string) (string, error) {
	if s.verifier == nil {
		return "", fmt.Errorf("SMS verification unavailable: %w", domain.ErrConfiguration)
	}
	sid, err := s.verifier.StartVerification(ctx, phone)
	if err != nil {
		slog.Error("verification provider start failed", "err", err)
		return "", fmt.Errorf("could not start phone verification: %w", domain.ErrDelivery)
	}
	return sid, nil
}

func (s *service) checkSMSVerification(ctx context.Context, phone, code string) error {
	if s.verifier == nil {
		return fmt.Errorf("SMS verification unavailable: %w", domain.ErrConfiguration)
	}
	status, err := s.verifier.CheckVerification(ctx, phone, code)
	if err != nil {
		slog.Error("verification provider check failed", "err", err)
		return fmt.Errorf("could not check phone verification: %w", domain.ErrDelivery)
	}
	if status != verify.StatusApproved {
		return fmt.Errorf("verification not approved: %w", domain.ErrInvalidCode)
	}
	return nil
}

// markVerified sets the verified flag and backfills the email-verified
// timestamp once. No-op when both are already set.
func (s *service) markVerified(ctx context.Context, u *domain.User) error {
	updates := map[string]interface{}{}
	if !u.Verified {
		updates["verified"] = true
	}
	if u.Email != nil && u.EmailVerifiedAt == nil {
		now := time.Now().UTC()
		updates["email_verified_at"] = now
		u.EmailVerifiedAt = &now
	}
	if len(updates) == 0 {
		return nil
	}
	u.Verified = true
	return s.userRepo.Update(ctx, u.UserID, updates)
}

func (s *service) issueSession(ctx context.Context, u *domain.User, deviceUUID *string) (*domain.Session, string, string, error) {
	dev, err := pkgdevice.Resolve(ctx, s.deviceRepo, deviceUUID, u.UserID)
	if err != nil {
		return nil, "", "", err
	}
	refreshToken, err := pkgtoken.NewRefreshToken()
	if err != nil {
		return nil, "", "", err
	}
	now := time.Now().UTC()
	sess := &domain.Session{
		SessionID:        id.New(),
		UserID:           u.UserID,
		DeviceID:         dev.DeviceID,
		Enable:           true,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: now.Add(s.refreshTokenDur).Unix(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.sessionRepo.Put(ctx, sess); err != nil {
		return nil, "", "", err
	}
	bearer, err := s.jwtProvider.Sign(u.UserID, dev.DeviceID, u.Role, sess.SessionID)
	if err != nil {
		return nil, "", "", err
	}
	sess.User = u
	return sess, bearer, refreshToken, nil
}

func (s *service) sendWelcome(ctx context.Context, u *domain.User) {
	// Welcome messages are best-effort; registration never fails on them.
	if u.Email != nil {
		if err := s.mailer.SendEmail(*u.Email, "Welcome to AsaanCar", "Hi "+u.Name+", your AsaanCar account is ready."); err != nil {
			slog.Warn("welcome email failed", "user_id", u.UserID, "err", err)
		}
		return
	}
	if u.Phone != nil && s.smsSender != nil {
		if err := s.smsSender.SendSMS(ctx, *u.Phone, "Welcome to AsaanCar! Your account is ready."); err != nil {
			slog.Warn("welcome SMS failed", "user_id", u.UserID, "err", err)
		}
	}
}

func (s *service) lookup(ctx context.Context, identifier string, isEmail bool) (*domain.User, error) {
	if isEmail {
		return s.userRepo.GetByEmail(ctx, identifier)
	}
	return s.userRepo.GetByPhone(ctx, identifier)
}

func pickIdentifier(email, phone *string) (string, bool, error) {
	switch {
	case email != nil && *email != "" && (phone == nil || *phone == ""):
		return *email, true, nil
	case phone != nil && *phone != "" && (email == nil || *email == ""):
		return *phone, false, nil
	default:
		return "", false, fmt.Errorf("exactly one of email or phone_number is required: %w", domain.ErrValidation)
	}
}

type registerIdentifier struct {
	value   string
	isEmail bool
}

func registerIdentifiers(email, phone *string) []registerIdentifier {
	var out []registerIdentifier
	if email != nil && *email != "" {
		out = append(out, registerIdentifier{value: *email, isEmail: true})
	}
	if phone != nil && *phone != "" {
		out = append(out, registerIdentifier{value: *phone, isEmail: false})
	}
	return out
}
