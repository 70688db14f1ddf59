// Package service implements the telegram identity-binding flow and the
// interest-notification flow on top of the catalog store and the notifier.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dmitrofanov/sx-wine-backend/internal/apperr"
	"github.com/dmitrofanov/sx-wine-backend/internal/database"
)

// BindingService consumes one-time keys to associate telegram identities with
// person records.
type BindingService struct {
	store  database.Store
	logger *slog.Logger
}

// NewBindingService creates a BindingService.
func NewBindingService(store database.Store, logger *slog.Logger) *BindingService {
	return &BindingService{
		store:  store,
		logger: logger.With("component", "binding_service"),
	}
}

// Bind consumes the one-time key and binds telegramID to the person holding
// it. Validation fails fast, first failure wins: telegram id presence, key
// presence, key lookup, identity uniqueness. On success the key is cleared
// and the updated person is returned. No notification is sent.
func (s *BindingService) Bind(ctx context.Context, key string, telegramID *int64) (*database.Person, error) {
	if telegramID == nil {
		return nil, apperr.NewInvalidArgument("telegram_id is required")
	}
	if key == "" {
		return nil, apperr.NewInvalidArgument("key is required")
	}

	person, err := s.store.BindTelegram(ctx, key, *telegramID)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrKeyNotFound):
			return nil, apperr.NewNotFound("person with this key not found")
		case errors.Is(err, database.ErrTelegramIDTaken):
			return nil, apperr.NewConflict("telegram id already bound to a different person")
		default:
			s.logger.ErrorContext(ctx, "Failed to bind telegram id", "telegram_id", *telegramID, "error", err)
			return nil, apperr.NewInternal("failed to bind telegram id", err)
		}
	}

	return person, nil
}
