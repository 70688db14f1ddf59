package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmitrofanov/sx-wine-backend/internal/apperr"
	"github.com/dmitrofanov/sx-wine-backend/internal/database"
	"github.com/dmitrofanov/sx-wine-backend/internal/notifier"
)

// InterestService records interest facts and alerts the administrator.
// Interest is persisted before the notification attempt, so a failed alert
// never loses the recorded fact.
type InterestService struct {
	store    database.Store
	notifier notifier.Notifier
	logger   *slog.Logger
}

// NewInterestService creates an InterestService.
func NewInterestService(store database.Store, n notifier.Notifier, logger *slog.Logger) *InterestService {
	return &InterestService{
		store:    store,
		notifier: n,
		logger:   logger.With("component", "interest_service"),
	}
}

// NotifyWineInterest records that the person is interested in the wine and
// alerts the administrator. It returns the wine's display name.
func (s *InterestService) NotifyWineInterest(ctx context.Context, nickname string, wineID *int64) (string, error) {
	person, err := s.resolvePerson(ctx, nickname, wineID, "wine_id")
	if err != nil {
		return "", err
	}

	wine, err := s.store.GetWineByID(ctx, *wineID)
	if err != nil {
		return "", apperr.NewInternal("failed to look up wine", err)
	}
	if wine == nil {
		return "", apperr.NewNotFound("wine not found")
	}

	if err := s.store.AddWineInterest(ctx, person.ID, wine.ID); err != nil {
		return "", apperr.NewInternal("failed to record wine interest", err)
	}

	displayName := wine.FullName()
	return displayName, s.notify(ctx, nickname, displayName)
}

// NotifyEventInterest records that the person is interested in the event and
// alerts the administrator. It returns the event's name.
func (s *InterestService) NotifyEventInterest(ctx context.Context, nickname string, eventID *int64) (string, error) {
	person, err := s.resolvePerson(ctx, nickname, eventID, "event_id")
	if err != nil {
		return "", err
	}

	event, err := s.store.GetEventByID(ctx, *eventID)
	if err != nil {
		return "", apperr.NewInternal("failed to look up event", err)
	}
	if event == nil {
		return "", apperr.NewNotFound("event not found")
	}

	if err := s.store.AddEventInterest(ctx, person.ID, event.ID); err != nil {
		return "", apperr.NewInternal("failed to record event interest", err)
	}

	return event.Name, s.notify(ctx, nickname, event.Name)
}

// resolvePerson validates the request inputs in order (nickname, then target
// id) and resolves the person by exact nickname.
func (s *InterestService) resolvePerson(ctx context.Context, nickname string, targetID *int64, idField string) (*database.Person, error) {
	if nickname == "" {
		return nil, apperr.NewInvalidArgument("nickname is required")
	}
	if targetID == nil {
		return nil, apperr.NewInvalidArgument(idField + " is required")
	}

	person, err := s.store.GetPersonByNickname(ctx, nickname)
	if err != nil {
		return nil, apperr.NewInternal("failed to look up person", err)
	}
	if person == nil {
		return nil, apperr.NewNotFound("person not found")
	}
	return person, nil
}

// notify composes the admin message and translates notifier failures into the
// API error taxonomy. The interest fact recorded before this call stands
// regardless of the outcome.
func (s *InterestService) notify(ctx context.Context, nickname, targetName string) error {
	message := fmt.Sprintf("%s is interested in %s", nickname, targetName)

	err := s.notifier.Send(ctx, message)
	if err == nil {
		s.logger.InfoContext(ctx, "Interest notification delivered", "nickname", nickname, "target", targetName)
		return nil
	}

	var deliveryErr *notifier.DeliveryError
	switch {
	case errors.Is(err, notifier.ErrNotConfigured):
		return apperr.NewUnavailable("notifier not configured")
	case errors.As(err, &deliveryErr):
		return apperr.NewUpstream(fmt.Sprintf("failed to deliver notification: %v", deliveryErr.Err), err)
	default:
		s.logger.ErrorContext(ctx, "Unexpected notification failure", "error", err)
		return apperr.NewInternal("unexpected notification failure", err)
	}
}
