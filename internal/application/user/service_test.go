package user

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

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

func (m *mockUserStore) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	return m.Called(ctx, userID, updates).Error(0)
}

func (m *mockUserStore) SoftDelete(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockUserStore) ScanPage(ctx context.Context, limit int32, cursor string) ([]domain.User, string, error) {
	args := m.Called(ctx, limit, cursor)
	var users []domain.User
	if v := args.Get(0); v != nil {
		users = v.([]domain.User)
	}
	return users, args.String(1), args.Error(2)
}

type mockSessionStore struct{ mock.Mock }

func (m *mockSessionStore) SoftDeleteByUser(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type mockFileStore struct{ mock.Mock }

func (m *mockFileStore) Put(ctx context.Context, f *domain.File) error {
	return m.Called(ctx, f).Error(0)
}

func (m *mockFileStore) Get(ctx context.Context, fileID string) (*domain.File, error) {
	args := m.Called(ctx, fileID)
	if f := args.Get(0); f != nil {
		return f.(*domain.File), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockFileStore) SoftDelete(ctx context.Context, fileID string) error {
	return m.Called(ctx, fileID).Error(0)
}

type mockObjectStore struct{ mock.Mock }

func (m *mockObjectStore) Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	args := m.Called(ctx, key, r, contentType)
	return args.String(0), args.Error(1)
}

func (m *mockObjectStore) Download(ctx context.Context, key string) (io.ReadCloser, string, error) {
	args := m.Called(ctx, key)
	if rc := args.Get(0); rc != nil {
		return rc.(io.ReadCloser), args.String(1), args.Error(2)
	}
	return nil, args.String(1), args.Error(2)
}

func (m *mockObjectStore) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func newTestService(t *testing.T) (Service, *mockUserStore, *mockSessionStore, *mockFileStore, *mockObjectStore) {
	t.Helper()
	users := new(mockUserStore)
	sessions := new(mockSessionStore)
	files := new(mockFileStore)
	objects := new(mockObjectStore)
	svc := NewService(ServiceDeps{
		UserRepo:    users,
		SessionRepo: sessions,
		FileRepo:    files,
		Objects:     objects,
	})
	return svc, users, sessions, files, objects
}

func testUser() *domain.User {
	email := "test@example.com"
	now := time.Now().UTC()
	return &domain.User{
		UserID:          "u1",
		Name:            "Test",
		Email:           &email,
		Role:            domain.RoleUser,
		Verified:        true,
		EmailVerifiedAt: &now,
		Enable:          true,
	}
}

func strptr(s string) *string { return &s }

func TestUpdate_NameOnly(t *testing.T) {
	svc, users, _, _, _ := newTestService(t)
	u := testUser()
	users.On("Get", mock.Anything, "u1").Return(u, nil)
	users.On("Update", mock.Anything, "u1", map[string]interface{}{"name": "Renamed"}).Return(nil)

	got, err := svc.Update(context.Background(), "u1", domain.UpdateUserRequest{Name: strptr("Renamed")})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	users.AssertExpectations(t)
}

func TestUpdate_EmailChange_ResetsVerifiedTimestamp(t *testing.T) {
	svc, users, _, _, _ := newTestService(t)
	u := testUser()
	users.On("Get", mock.Anything, "u1").Return(u, nil)
	users.On("GetByEmail", mock.Anything, "new@example.com").Return(nil, domain.ErrNotFound)
	users.On("Update", mock.Anything, "u1", mock.MatchedBy(func(m map[string]interface{}) bool {
		v, present := m["email_verified_at"]
		return m["email"] == "new@example.com" && present && v == nil
	})).Return(nil)

	got, err := svc.Update(context.Background(), "u1", domain.UpdateUserRequest{Email: strptr("new@example.com")})
	require.NoError(t, err)
	assert.Nil(t, got.EmailVerifiedAt)
}

func TestUpdate_EmailConflict(t *testing.T) {
	svc, users, _, _, _ := newTestService(t)
	u := testUser()
	other := testUser()
	other.UserID = "u2"
	users.On("Get", mock.Anything, "u1").Return(u, nil)
	users.On("GetByEmail", mock.Anything, "taken@example.com").Return(other, nil)

	_, err := svc.Update(context.Background(), "u1", domain.UpdateUserRequest{Email: strptr("taken@example.com")})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestUpdate_PhoneChange_ResetsVerified(t *testing.T) {
	svc, users, _, _, _ := newTestService(t)
	u := testUser()
	users.On("Get", mock.Anything, "u1").Return(u, nil)
	users.On("GetByPhone", mock.Anything, "+923001234567").Return(nil, domain.ErrNotFound)
	users.On("Update", mock.Anything, "u1", mock.MatchedBy(func(m map[string]interface{}) bool {
		return m["phone"] == "+923001234567" && m["verified"] == false
	})).Return(nil)

	got, err := svc.Update(context.Background(), "u1", domain.UpdateUserRequest{Phone: strptr("+923001234567")})
	require.NoError(t, err)
	assert.False(t, got.Verified)
}

func TestDelete_DisablesSessions(t *testing.T) {
	svc, users, sessions, _, _ := newTestService(t)
	users.On("Get", mock.Anything, "u1").Return(testUser(), nil)
	users.On("SoftDelete", mock.Anything, "u1").Return(nil)
	sessions.On("SoftDeleteByUser", mock.Anything, "u1").Return(nil)

	require.NoError(t, svc.Delete(context.Background(), "u1"))
	sessions.AssertExpectations(t)
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	svc, users, _, _, _ := newTestService(t)
	u := testUser()
	hash, err := bcrypt.GenerateFromPassword([]byte("current1"), bcrypt.MinCost)
	require.NoError(t, err)
	u.PasswordHash = string(hash)
	users.On("Get", mock.Anything, "u1").Return(u, nil)

	err = svc.ChangePassword(context.Background(), "u1", ChangePasswordRequest{
		CurrentPassword: "wrongpass", Password: "newpass123", PasswordConfirmation: "newpass123",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestChangePassword_NoPasswordOnAccount(t *testing.T) {
	svc, users, _, _, _ := newTestService(t)
	users.On("Get", mock.Anything, "u1").Return(testUser(), nil)

	err := svc.ChangePassword(context.Background(), "u1", ChangePasswordRequest{
		CurrentPassword: "anything", Password: "newpass123", PasswordConfirmation: "newpass123",
	})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestChangePassword_HappyPath(t *testing.T) {
	svc, users, _, _, _ := newTestService(t)
	u := testUser()
	hash, err := bcrypt.GenerateFromPassword([]byte("current1"), bcrypt.MinCost)
	require.NoError(t, err)
	u.PasswordHash = string(hash)
	users.On("Get", mock.Anything, "u1").Return(u, nil)
	users.On("Update", mock.Anything, "u1", mock.MatchedBy(func(m map[string]interface{}) bool {
		h, ok := m["password_hash"].(string)
		return ok && h != "" && h != "newpass123"
	})).Return(nil)

	err = svc.ChangePassword(context.Background(), "u1", ChangePasswordRequest{
		CurrentPassword: "current1", Password: "newpass123", PasswordConfirmation: "newpass123",
	})
	require.NoError(t, err)
	users.AssertExpectations(t)
}

func TestUploadAvatar_LinksFileAndRetiresOld(t *testing.T) {
	svc, users, _, files, objects := newTestService(t)
	u := testUser()
	u.AvatarFileID = strptr("old-file")
	users.On("Get", mock.Anything, "u1").Return(u, nil)
	objects.On("Upload", mock.Anything, mock.AnythingOfType("string"), mock.Anything, "image/png").
		Return("avatars/u1/key", nil)
	files.On("Put", mock.Anything, mock.MatchedBy(func(f *domain.File) bool {
		return f.OwnerID == "u1" && f.Type == "image/png" && f.Name == "me.png" && f.Enable
	})).Return(nil)
	users.On("Update", mock.Anything, "u1", mock.MatchedBy(func(m map[string]interface{}) bool {
		_, ok := m["avatar_file_id"]
		return ok
	})).Return(nil)
	files.On("SoftDelete", mock.Anything, "old-file").Return(nil)

	f, err := svc.UploadAvatar(context.Background(), "u1", "me.png", "image/png", 4, bytes.NewReader([]byte("png!")))
	require.NoError(t, err)
	assert.Equal(t, "avatars/u1/key", f.Object)
	files.AssertCalled(t, "SoftDelete", mock.Anything, "old-file")
}

func TestDownloadAvatar_NoAvatar(t *testing.T) {
	svc, users, _, _, _ := newTestService(t)
	users.On("Get", mock.Anything, "u1").Return(testUser(), nil)

	_, _, err := svc.DownloadAvatar(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDownloadAvatar_StreamsObject(t *testing.T) {
	svc, users, _, files, objects := newTestService(t)
	u := testUser()
	u.AvatarFileID = strptr("f1")
	users.On("Get", mock.Anything, "u1").Return(u, nil)
	files.On("Get", mock.Anything, "f1").Return(&domain.File{FileID: "f1", Object: "avatars/u1/f1", Type: "image/png"}, nil)
	objects.On("Download", mock.Anything, "avatars/u1/f1").
		Return(io.NopCloser(bytes.NewReader([]byte("png!"))), "image/png", nil)

	rc, contentType, err := svc.DownloadAvatar(context.Background(), "u1")
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, "image/png", contentType)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, []byte("png!"), data)
}
