package handler

import (
	"encoding/json"
	"net/http"

	"github.com/asaancar/identity-api/internal/application/auth"
	"github.com/asaancar/identity-api/internal/pkg/validate"
)

// AuthHandler exposes the OTP send/verify flow, registration and the
// set-password endpoint.
type AuthHandler struct {
	svc auth.Service
}

func NewAuthHandler(svc auth.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

func (h *AuthHandler) SendLoginOTP(w http.ResponseWriter, r *http.Request) {
	var req auth.SendLoginOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	res, err := h.svc.SendLoginOTP(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sendOTPEnvelope(res))
}

func (h *AuthHandler) VerifyLoginOTP(w http.ResponseWriter, r *http.Request) {
	var req auth.VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	res, err := h.svc.VerifyLoginOTP(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyOTPEnvelope(res))
}

func (h *AuthHandler) SendSignupOTP(w http.ResponseWriter, r *http.Request) {
	var req auth.SendSignupOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	res, err := h.svc.SendSignupOTP(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sendOTPEnvelope(res))
}

func (h *AuthHandler) VerifySignupOTP(w http.ResponseWriter, r *http.Request) {
	var req auth.VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	res, err := h.svc.VerifySignupOTP(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyOTPEnvelope(res))
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	res, err := h.svc.Register(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	env := RegisterEnvelope{
		Success:      true,
		Token:        res.Bearer,
		RefreshToken: res.RefreshToken,
		Session:      res.Session,
		PasswordSet:  res.PasswordSet,
	}
	if res.Session != nil {
		env.User = res.Session.User
	}
	writeJSON(w, http.StatusCreated, env)
}

func (h *AuthHandler) SetPassword(w http.ResponseWriter, r *http.Request) {
	var req auth.SetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := h.svc.SetPassword(r.Context(), req); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Success: true, Message: "password set"})
}

func sendOTPEnvelope(res *auth.SendOTPResult) SendOTPEnvelope {
	env := SendOTPEnvelope{
		Success:        true,
		Identifier:     res.Identifier,
		IsEmail:        res.IsEmail,
		IsExistingUser: res.IsExistingUser,
		Token:          res.Bearer,
		RefreshToken:   res.RefreshToken,
		Session:        res.Session,
	}
	if res.Session != nil {
		env.User = res.Session.User
	}
	return env
}

func verifyOTPEnvelope(res *auth.VerifyOTPResult) VerifyOTPEnvelope {
	env := VerifyOTPEnvelope{
		Success:        true,
		IsExistingUser: res.IsExistingUser,
		Token:          res.Bearer,
		RefreshToken:   res.RefreshToken,
		Session:        res.Session,
	}
	if res.Session != nil {
		env.User = res.Session.User
	}
	return env
}
