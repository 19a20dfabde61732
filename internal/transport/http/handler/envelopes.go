package handler

import (
	"encoding/json"
	"net/http"

	"github.com/asaancar/identity-api/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SendOTPEnvelope reports where a code was dispatched. Token and user are set
// only when no code exchange happened (demo bypass).
type SendOTPEnvelope struct {
	Success        bool            `json:"success"`
	Identifier     string          `json:"identifier,omitempty"`
	IsEmail        bool            `json:"is_email"`
	IsExistingUser bool            `json:"is_existing_user"`
	Token          string          `json:"token,omitempty"`
	RefreshToken   string          `json:"refresh_token,omitempty"`
	User           *domain.User    `json:"user,omitempty"`
	Session        *domain.Session `json:"session,omitempty"`
}

// VerifyOTPEnvelope carries the minted session for existing users. New
// signups get success only; the account is created by a later register call.
type VerifyOTPEnvelope struct {
	Success        bool            `json:"success"`
	IsExistingUser bool            `json:"is_existing_user"`
	Token          string          `json:"token,omitempty"`
	RefreshToken   string          `json:"refresh_token,omitempty"`
	User           *domain.User    `json:"user,omitempty"`
	Session        *domain.Session `json:"session,omitempty"`
}

// RegisterEnvelope wraps registration responses.
type RegisterEnvelope struct {
	Success      bool            `json:"success"`
	Token        string          `json:"token"`
	RefreshToken string          `json:"refresh_token"`
	User         *domain.User    `json:"user"`
	Session      *domain.Session `json:"session,omitempty"`
	PasswordSet  bool            `json:"password_set"`
}

// AuthEnvelope wraps password-login and refresh responses.
type AuthEnvelope struct {
	Token        string          `json:"token,omitempty"`
	RefreshToken string          `json:"refresh_token,omitempty"`
	User         *domain.User    `json:"user,omitempty"`
	Session      *domain.Session `json:"session,omitempty"`
	Message      string          `json:"message,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// SessionEnvelope wraps current-session responses.
type SessionEnvelope struct {
	Session *domain.Session `json:"session,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// PaginatedUsersEnvelope wraps cursor-paginated user list responses.
type PaginatedUsersEnvelope struct {
	Data       []domain.User `json:"data"`
	NextCursor string        `json:"next_cursor,omitempty"`
	Error      string        `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}
