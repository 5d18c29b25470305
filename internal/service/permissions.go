package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"healthsync/internal/health"
	"healthsync/internal/kv"
)

// PermissionChecker reports whether read access to all record types was granted.
type PermissionChecker interface {
	Granted(ctx context.Context) (bool, error)
}

// PermissionService owns the persisted healthPermissions flag. Access is
// all-or-nothing: one flag covers every record type.
type PermissionService struct {
	Provider health.Provider
	KV       kv.Store
	Logger   *zap.Logger
}

// Grant asks the provider for read access to every record type and persists
// the flag once the provider accepts.
func (s *PermissionService) Grant(ctx context.Context) error {
	if s == nil || s.Provider == nil || s.KV == nil {
		return fmt.Errorf("permission service unavailable")
	}
	if err := initialize(ctx, s.Provider); err != nil {
		return err
	}
	if err := s.Provider.RequestPermission(ctx, health.ReadPermissions()); err != nil {
		return fmt.Errorf("%w: %v", health.ErrPermission, err)
	}
	if err := s.KV.Set(ctx, kv.KeyPermissions, []byte("true"), 0); err != nil {
		return err
	}
	if s.Logger != nil {
		s.Logger.Info("health permissions granted", zap.Int("record_types", len(health.AllRecordTypes)))
	}
	return nil
}

// Revoke clears the flag. The provider-side grant is left alone.
func (s *PermissionService) Revoke(ctx context.Context) error {
	if s == nil || s.KV == nil {
		return fmt.Errorf("permission service unavailable")
	}
	return s.KV.Delete(ctx, kv.KeyPermissions)
}

// Granted reports whether the flag is present. Any non-empty value counts.
func (s *PermissionService) Granted(ctx context.Context) (bool, error) {
	if s == nil || s.KV == nil {
		return false, nil
	}
	raw, found, err := s.KV.Get(ctx, kv.KeyPermissions)
	if err != nil {
		return false, err
	}
	return found && strings.TrimSpace(string(raw)) != "", nil
}

// Check is Granted with store failures reported as not granted.
func (s *PermissionService) Check(ctx context.Context) bool {
	ok, err := s.Granted(ctx)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("permission check failed", zap.Error(err))
		}
		return false
	}
	return ok
}

// initialize runs the provider handshake; a false result is ErrInitialization.
func initialize(ctx context.Context, p health.Provider) error {
	if p == nil {
		return fmt.Errorf("%w: provider missing", health.ErrInitialization)
	}
	ok, err := p.Initialize(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", health.ErrInitialization, err)
	}
	if !ok {
		return health.ErrInitialization
	}
	return nil
}

// ensureReady runs the init and permission gates shared by both run paths.
func ensureReady(ctx context.Context, p health.Provider, perms PermissionChecker) error {
	if err := initialize(ctx, p); err != nil {
		return err
	}
	if perms == nil {
		return health.ErrPermission
	}
	ok, err := perms.Granted(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return health.ErrPermission
	}
	return nil
}
