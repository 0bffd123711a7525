// internal/service/wallet/registration.go
package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rewardjar-service/internal/domain/wallet"
	xerrors "rewardjar-service/internal/pkg/errors"
	"rewardjar-service/internal/pkg/walletpass"
	"rewardjar-service/internal/pkg/walletpass/apple"

	"go.uber.org/zap"
)

// AuthenticateDevice checks the ApplePass token a device sent for serial.
func (s *WalletService) AuthenticateDevice(serial, token string) error {
	if !s.opts.Tokens.Verify(serial, token) {
		return xerrors.ErrUnauthorized
	}
	return nil
}

// RegisterDevice upserts a device; re-registering replaces its push token.
func (s *WalletService) RegisterDevice(ctx context.Context, deviceLibraryID, pushToken string) (*wallet.Device, error) {
	if strings.TrimSpace(deviceLibraryID) == "" || strings.TrimSpace(pushToken) == "" {
		return nil, fmt.Errorf("device id and push token are required: %w", xerrors.ErrInvalidInput)
	}

	d := &wallet.Device{
		DeviceLibraryIdentifier: deviceLibraryID,
		PushToken:               pushToken,
		Platform:                wallet.PlatformApple,
	}
	if err := s.deviceRepo.Upsert(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// RegisterPass links an existing device to an existing pass. Nothing is
// written when either one is unknown.
func (s *WalletService) RegisterPass(ctx context.Context, passTypeID, serial, deviceLibraryID string) (bool, error) {
	pass, err := s.passRepo.FindBySerial(ctx, passTypeID, serial)
	if err != nil {
		return false, fmt.Errorf("pass %s: %w", serial, err)
	}
	device, err := s.deviceRepo.FindByLibraryID(ctx, deviceLibraryID)
	if err != nil {
		return false, fmt.Errorf("device %s: %w", deviceLibraryID, err)
	}
	return s.deviceRepo.Register(ctx, device.ID, pass.ID)
}

// RegisterDeviceForPass handles the PassKit registration call, which carries
// the push token together with the pass to register for.
func (s *WalletService) RegisterDeviceForPass(ctx context.Context, passTypeID, serial, deviceLibraryID, pushToken string) (bool, error) {
	if strings.TrimSpace(deviceLibraryID) == "" || strings.TrimSpace(pushToken) == "" {
		return false, fmt.Errorf("device id and push token are required: %w", xerrors.ErrInvalidInput)
	}

	pass, err := s.passRepo.FindBySerial(ctx, passTypeID, serial)
	if err != nil {
		return false, fmt.Errorf("pass %s: %w", serial, err)
	}

	d := &wallet.Device{
		DeviceLibraryIdentifier: deviceLibraryID,
		PushToken:               pushToken,
		Platform:                wallet.PlatformApple,
	}
	created, err := s.deviceRepo.UpsertAndRegister(ctx, d, pass.ID)
	if err != nil {
		s.logger.Error("failed to register device",
			zap.String("serial", serial),
			zap.String("device", deviceLibraryID),
			zap.Error(err))
		return false, err
	}

	s.logger.Info("device registered for pass",
		zap.String("serial", serial),
		zap.String("device", deviceLibraryID),
		zap.Bool("created", created))
	return created, nil
}

func (s *WalletService) UnregisterPass(ctx context.Context, passTypeID, serial, deviceLibraryID string) error {
	pass, err := s.passRepo.FindBySerial(ctx, passTypeID, serial)
	if err != nil {
		return fmt.Errorf("pass %s: %w", serial, err)
	}
	device, err := s.deviceRepo.FindByLibraryID(ctx, deviceLibraryID)
	if err != nil {
		return fmt.Errorf("device %s: %w", deviceLibraryID, err)
	}
	if err := s.deviceRepo.Unregister(ctx, device.ID, pass.ID); err != nil {
		return fmt.Errorf("registration: %w", err)
	}

	s.logger.Info("device unregistered from pass", zap.String("serial", serial), zap.String("device", deviceLibraryID))
	return nil
}

// ListChangedSerials returns serials of passTypeID updated after since,
// ascending by tag, and the largest tag seen (since when nothing changed).
// With a device id only passes registered to that device are considered; an
// unknown device has nothing to sync.
func (s *WalletService) ListChangedSerials(ctx context.Context, passTypeID, deviceLibraryID string, since int64) (*wallet.ChangedSerials, error) {
	result := &wallet.ChangedSerials{SerialNumbers: []string{}, LastUpdated: since}

	deviceID := ""
	if deviceLibraryID != "" {
		device, err := s.deviceRepo.FindByLibraryID(ctx, deviceLibraryID)
		if errors.Is(err, xerrors.ErrNotFound) {
			return result, nil
		}
		if err != nil {
			return nil, err
		}
		deviceID = device.ID
	}

	tags, err := s.passRepo.ListUpdatedSince(ctx, passTypeID, deviceID, since)
	if err != nil {
		return nil, err
	}

	for _, t := range tags {
		result.SerialNumbers = append(result.SerialNumbers, t.SerialNumber)
		if t.UpdateTag > result.LastUpdated {
			result.LastUpdated = t.UpdateTag
		}
	}
	return result, nil
}

// LatestPass is what GET /v1/passes answers with.
type LatestPass struct {
	Pass         *wallet.Pass
	Document     *apple.PassDocument
	Archive      []byte
	LastModified time.Time
	NotModified  bool
}

// GetLatestPass rebuilds the pass document from live state. When
// modifiedSince is not zero and the pass has not changed since, only
// NotModified is set. The document is signed when a signer is configured.
func (s *WalletService) GetLatestPass(ctx context.Context, passTypeID, serial string, modifiedSince time.Time) (*LatestPass, error) {
	if s.opts.Apple == nil {
		return nil, fmt.Errorf("apple wallet: %w", xerrors.ErrNotConfigured)
	}

	pass, err := s.passRepo.FindBySerial(ctx, passTypeID, serial)
	if err != nil {
		return nil, err
	}

	// HTTP dates have second precision
	lastModified := pass.UpdatedAt.UTC().Truncate(time.Second)
	latest := &LatestPass{Pass: pass, LastModified: lastModified}
	if !modifiedSince.IsZero() && !lastModified.After(modifiedSince) {
		latest.NotModified = true
		return latest, nil
	}

	cc, err := s.loadCard(ctx, pass.CustomerCardID)
	if err != nil {
		return nil, err
	}

	doc, err := s.opts.Apple.BuildPassJSON(cc, &cc.Business, pass.SerialNumber, walletpass.FromCard(cc, s.now()))
	if err != nil {
		s.logger.Error("failed to build pass document", zap.String("serial", serial), zap.Error(err))
		return nil, err
	}
	latest.Document = doc

	if s.opts.Signer != nil {
		archive, err := s.opts.Signer.Sign(ctx, doc)
		if err != nil {
			s.logger.Error("failed to sign pass", zap.String("serial", serial), zap.Error(err))
			return nil, fmt.Errorf("failed to sign pass: %w", err)
		}
		latest.Archive = archive
	}
	return latest, nil
}

// RecordDeviceLogs writes messages devices report about the web service.
func (s *WalletService) RecordDeviceLogs(ctx context.Context, logs []string) {
	for _, msg := range logs {
		s.logger.Warn("passkit device log", zap.String("message", msg))
	}
}
