package user

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/asaancar/identity-api/internal/domain"
	"github.com/asaancar/identity-api/internal/pkg/id"
	"golang.org/x/crypto/bcrypt"
)

type ChangePasswordRequest struct {
	CurrentPassword      string `json:"current_password" validate:"required"`
	Password             string `json:"password" validate:"required,min=8,max=72"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required"`
}

type Page struct {
	Users      []domain.User
	NextCursor string
}

type Service interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, req domain.UpdateUserRequest) (*domain.User, error)
	List(ctx context.Context, limit int32, cursor string) (*Page, error)
	Delete(ctx context.Context, userID string) error
	ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest) error
	UploadAvatar(ctx context.Context, userID, filename, contentType string, size int64, r io.Reader) (*domain.File, error)
	DownloadAvatar(ctx context.Context, userID string) (io.ReadCloser, string, error)
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	SoftDelete(ctx context.Context, userID string) error
	ScanPage(ctx context.Context, limit int32, cursor string) ([]domain.User, string, error)
}

type sessionStore interface {
	SoftDeleteByUser(ctx context.Context, userID string) error
}

type fileStore interface {
	Put(ctx context.Context, f *domain.File) error
	Get(ctx context.Context, fileID string) (*domain.File, error)
	SoftDelete(ctx context.Context, fileID string) error
}

type objectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	Download(ctx context.Context, key string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, key string) error
}

type service struct {
	userRepo    userStore
	sessionRepo sessionStore
	fileRepo    fileStore
	objects     objectStore
}

type ServiceDeps struct {
	UserRepo    userStore
	SessionRepo sessionStore
	FileRepo    fileStore
	Objects     objectStore
}

func NewService(deps ServiceDeps) Service {
	return &service{
		userRepo:    deps.UserRepo,
		sessionRepo: deps.SessionRepo,
		fileRepo:    deps.FileRepo,
		objects:     deps.Objects,
	}
}

func (s *service) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.userRepo.Get(ctx, userID)
}

// Update applies a partial profile update. Changing the email or phone checks
// uniqueness against the other accounts first.
func (s *service) Update(ctx context.Context, userID string, req domain.UpdateUserRequest) (*domain.User, error) {
	u, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Name != nil && *req.Name != "" {
		updates["name"] = *req.Name
		u.Name = *req.Name
	}
	if req.Email != nil && *req.Email != "" && (u.Email == nil || *u.Email != *req.Email) {
		if other, err := s.userRepo.GetByEmail(ctx, *req.Email); err == nil && other.UserID != userID {
			return nil, fmt.Errorf("email already in use: %w", domain.ErrConflict)
		}
		updates["email"] = *req.Email
		// A changed email address has not been verified over the new channel.
		updates["email_verified_at"] = nil
		u.Email = req.Email
		u.EmailVerifiedAt = nil
	}
	if req.Phone != nil && *req.Phone != "" && (u.Phone == nil || *u.Phone != *req.Phone) {
		if other, err := s.userRepo.GetByPhone(ctx, *req.Phone); err == nil && other.UserID != userID {
			return nil, fmt.Errorf("phone number already in use: %w", domain.ErrConflict)
		}
		updates["phone"] = *req.Phone
		updates["verified"] = false
		u.Phone = req.Phone
		u.Verified = false
	}
	if len(updates) == 0 {
		return u, nil
	}
	if err := s.userRepo.Update(ctx, userID, updates); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *service) List(ctx context.Context, limit int32, cursor string) (*Page, error) {
	users, next, err := s.userRepo.ScanPage(ctx, limit, cursor)
	if err != nil {
		return nil, err
	}
	return &Page{Users: users, NextCursor: next}, nil
}

// Delete soft-deletes the account and disables every session it holds.
func (s *service) Delete(ctx context.Context, userID string) error {
	if _, err := s.userRepo.Get(ctx, userID); err != nil {
		return err
	}
	if err := s.userRepo.SoftDelete(ctx, userID); err != nil {
		return err
	}
	if err := s.sessionRepo.SoftDeleteByUser(ctx, userID); err != nil {
		slog.Warn("failed to disable sessions for deleted user", "user_id", userID, "err", err)
	}
	return nil
}

// ChangePassword requires the current password; accounts without one must go
// through the OTP set-password flow instead.
func (s *service) ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest) error {
	if req.Password != req.PasswordConfirmation {
		return fmt.Errorf("password confirmation does not match: %w", domain.ErrValidation)
	}
	u, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !u.HasPassword() {
		return fmt.Errorf("account has no password: %w", domain.ErrBadRequest)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return fmt.Errorf("current password mismatch: %w", domain.ErrInvalidCredentials)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.userRepo.Update(ctx, userID, map[string]interface{}{"password_hash": string(hash)})
}

// UploadAvatar stores the image in S3 and links the file record to the user,
// replacing any previous avatar.
func (s *service) UploadAvatar(ctx context.Context, userID, filename, contentType string, size int64, r io.Reader) (*domain.File, error) {
	u, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	fileID := id.New()
	key := "avatars/" + userID + "/" + fileID
	object, err := s.objects.Upload(ctx, key, r, contentType)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	f := &domain.File{
		FileID:    fileID,
		Object:    object,
		Size:      size,
		Type:      contentType,
		Name:      filename,
		OwnerID:   userID,
		Enable:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.fileRepo.Put(ctx, f); err != nil {
		return nil, err
	}
	if err := s.userRepo.Update(ctx, userID, map[string]interface{}{"avatar_file_id": fileID}); err != nil {
		return nil, err
	}
	if u.AvatarFileID != nil {
		if err := s.fileRepo.SoftDelete(ctx, *u.AvatarFileID); err != nil {
			slog.Warn("failed to retire previous avatar", "file_id", *u.AvatarFileID, "err", err)
		}
	}
	return f, nil
}

func (s *service) DownloadAvatar(ctx context.Context, userID string) (io.ReadCloser, string, error) {
	u, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	if u.AvatarFileID == nil {
		return nil, "", fmt.Errorf("user has no avatar: %w", domain.ErrNotFound)
	}
	f, err := s.fileRepo.Get(ctx, *u.AvatarFileID)
	if err != nil {
		return nil, "", err
	}
	return s.objects.Download(ctx, f.Object)
}
