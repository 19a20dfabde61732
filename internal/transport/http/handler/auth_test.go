package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/asaancar/identity-api/internal/application/auth"
	"github.com/asaancar/identity-api/internal/domain"
)

type mockAuthService struct{ mock.Mock }

func (m *mockAuthService) SendLoginOTP(ctx context.Context, req auth.SendLoginOTPRequest) (*auth.SendOTPResult, error) {
	args := m.Called(ctx, req)
	if r := args.Get(0); r != nil {
		return r.(*auth.SendOTPResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthService) VerifyLoginOTP(ctx context.Context, req auth.VerifyOTPRequest) (*auth.VerifyOTPResult, error) {
	args := m.Called(ctx, req)
	if r := args.Get(0); r != nil {
		return r.(*auth.VerifyOTPResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthService) SendSignupOTP(ctx context.Context, req auth.SendSignupOTPRequest) (*auth.SendOTPResult, error) {
	args := m.Called(ctx, req)
	if r := args.Get(0); r != nil {
		return r.(*auth.SendOTPResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthService) VerifySignupOTP(ctx context.Context, req auth.VerifyOTPRequest) (*auth.VerifyOTPResult, error) {
	args := m.Called(ctx, req)
	if r := args.Get(0); r != nil {
		return r.(*auth.VerifyOTPResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthService) Register(ctx context.Context, req auth.RegisterRequest) (*auth.RegisterResult, error) {
	args := m.Called(ctx, req)
	if r := args.Get(0); r != nil {
		return r.(*auth.RegisterResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthService) SetPassword(ctx context.Context, req auth.SetPasswordRequest) error {
	return m.Called(ctx, req).Error(0)
}

func postJSON(t *testing.T, h http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestSendLoginOTP_MissingPhone_422(t *testing.T) {
	h := NewAuthHandler(new(mockAuthService))
	rr := postJSON(t, h.SendLoginOTP, map[string]string{})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestSendLoginOTP_UnknownPhone_404(t *testing.T) {
	svc := new(mockAuthService)
	svc.On("SendLoginOTP", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("no account: %w", domain.ErrNotFound))
	h := NewAuthHandler(svc)

	rr := postJSON(t, h.SendLoginOTP, map[string]string{"phone_number": "+923009999999"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSendLoginOTP_OK_Envelope(t *testing.T) {
	svc := new(mockAuthService)
	svc.On("SendLoginOTP", mock.Anything, auth.SendLoginOTPRequest{PhoneNumber: "+923001234567"}).
		Return(&auth.SendOTPResult{Identifier: "+923001234567", IsExistingUser: true}, nil)
	h := NewAuthHandler(svc)

	rr := postJSON(t, h.SendLoginOTP, map[string]string{"phone_number": "+923001234567"})
	require.Equal(t, http.StatusOK, rr.Code)

	var env SendOTPEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.True(t, env.Success)
	assert.True(t, env.IsExistingUser)
	assert.Equal(t, "+923001234567", env.Identifier)
	assert.Empty(t, env.Token)
}

func TestVerifyLoginOTP_BadOTPFormat_422(t *testing.T) {
	h := NewAuthHandler(new(mockAuthService))
	rr := postJSON(t, h.VerifyLoginOTP, map[string]string{"identifier": "a@b.com", "otp": "12"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestVerifyLoginOTP_InvalidCode_400(t *testing.T) {
	svc := new(mockAuthService)
	svc.On("VerifyLoginOTP", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("mismatch: %w", domain.ErrInvalidCode))
	h := NewAuthHandler(svc)

	rr := postJSON(t, h.VerifyLoginOTP, map[string]string{"identifier": "a@b.com", "otp": "000000"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestVerifyLoginOTP_ExpiredCode_400(t *testing.T) {
	svc := new(mockAuthService)
	svc.On("VerifyLoginOTP", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("expired: %w", domain.ErrExpiredCode))
	h := NewAuthHandler(svc)

	rr := postJSON(t, h.VerifyLoginOTP, map[string]string{"identifier": "a@b.com", "otp": "123456"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var env VerifyOTPEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.Empty(t, env.Token, "no token on a rejected code")
}

func TestVerifySignupOTP_NewUser_NoToken(t *testing.T) {
	svc := new(mockAuthService)
	svc.On("VerifySignupOTP", mock.Anything, mock.Anything).
		Return(&auth.VerifyOTPResult{IsExistingUser: false}, nil)
	h := NewAuthHandler(svc)

	rr := postJSON(t, h.VerifySignupOTP, map[string]string{"identifier": "+923001234567", "otp": "123456"})
	require.Equal(t, http.StatusOK, rr.Code)

	var env VerifyOTPEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.True(t, env.Success)
	assert.False(t, env.IsExistingUser)
	assert.Empty(t, env.Token)
}

func TestRegister_UnverifiedIdentity_422(t *testing.T) {
	svc := new(mockAuthService)
	svc.On("Register", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("no verification: %w", domain.ErrUnverifiedIdentity))
	h := NewAuthHandler(svc)

	rr := postJSON(t, h.Register, map[string]string{
		"name": "Test", "phone_number": "+923001234567", "role": "user",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestRegister_Created_Envelope(t *testing.T) {
	u := &domain.User{UserID: "u1", Name: "Test", Role: domain.RoleUser}
	svc := new(mockAuthService)
	svc.On("Register", mock.Anything, mock.Anything).Return(&auth.RegisterResult{
		Bearer:       "bearer-token",
		RefreshToken: "refresh-token",
		Session:      &domain.Session{SessionID: "s1", UserID: "u1", User: u},
		PasswordSet:  false,
	}, nil)
	h := NewAuthHandler(svc)

	rr := postJSON(t, h.Register, map[string]string{
		"name": "Test", "phone_number": "+923001234567", "role": "user",
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	var env RegisterEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Equal(t, "bearer-token", env.Token)
	assert.False(t, env.PasswordSet)
	require.NotNil(t, env.User)
	assert.Equal(t, "u1", env.User.UserID)
}

func TestSetPassword_InvalidBody_400(t *testing.T) {
	h := NewAuthHandler(new(mockAuthService))
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{not json")))
	rr := httptest.NewRecorder()
	h.SetPassword(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSetPassword_OK(t *testing.T) {
	svc := new(mockAuthService)
	svc.On("SetPassword", mock.Anything, auth.SetPasswordRequest{
		Identifier: "a@b.com", Password: "s3cretpass", PasswordConfirmation: "s3cretpass",
	}).Return(nil)
	h := NewAuthHandler(svc)

	rr := postJSON(t, h.SetPassword, map[string]string{
		"identifier": "a@b.com", "password": "s3cretpass", "password_confirmation": "s3cretpass",
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var env MessageEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.True(t, env.Success)
}
