package device

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/asaancar/identity-api/internal/domain"
)

type Service interface {
	List(ctx context.Context, userID string) ([]domain.Device, error)
	Delete(ctx context.Context, userID, deviceID string) error
}

type deviceStore interface {
	Get(ctx context.Context, deviceID string) (*domain.Device, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Device, error)
	SoftDelete(ctx context.Context, deviceID string) error
}

type sessionStore interface {
	SoftDeleteByDevice(ctx context.Context, deviceID string) error
}

type service struct {
	deviceRepo  deviceStore
	sessionRepo sessionStore
}

func NewService(deviceRepo deviceStore, sessionRepo sessionStore) Service {
	return &service{deviceRepo: deviceRepo, sessionRepo: sessionRepo}
}

func (s *service) List(ctx context.Context, userID string) ([]domain.Device, error) {
	return s.deviceRepo.ListByUser(ctx, userID)
}

// Delete removes one of the caller's devices and disables the sessions bound
// to it. Deleting another user's device is a not-found, not a forbidden, so
// device IDs are not probeable.
func (s *service) Delete(ctx context.Context, userID, deviceID string) error {
	d, err := s.deviceRepo.Get(ctx, deviceID)
	if err != nil {
		return err
	}
	if d.UserID != userID {
		return fmt.Errorf("device does not belong to caller: %w", domain.ErrNotFound)
	}
	if err := s.deviceRepo.SoftDelete(ctx, deviceID); err != nil {
		return err
	}
	if err := s.sessionRepo.SoftDeleteByDevice(ctx, deviceID); err != nil {
		slog.Warn("failed to disable sessions for deleted device", "device_id", deviceID, "err", err)
	}
	return nil
}
