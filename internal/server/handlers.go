package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/dmitrofanov/sx-wine-backend/internal/apperr"
	"github.com/dmitrofanov/sx-wine-backend/internal/database"
)

// renderError maps the application error taxonomy onto HTTP statuses and
// renders the structured error body. No failure escapes as a bare 500 page.
func renderError(c *fiber.Ctx, err error) error {
	status := http.StatusInternalServerError
	switch apperr.Code(err) {
	case apperr.CodeInvalidArgument:
		status = http.StatusBadRequest
	case apperr.CodeNotFound:
		status = http.StatusNotFound
	case apperr.CodeConflict:
		status = http.StatusConflict
	}
	return c.Status(status).JSON(fiber.Map{"error": apperr.Message(err)})
}

// wineResponse decorates a wine with its derived display name.
type wineResponse struct {
	database.Wine
	DisplayName string `json:"display_name"`
}

func newWineResponse(wine database.Wine) wineResponse {
	return wineResponse{Wine: wine, DisplayName: wine.FullName()}
}

func newWineResponses(wines []database.Wine) []wineResponse {
	out := make([]wineResponse, len(wines))
	for i, wine := range wines {
		out[i] = newWineResponse(wine)
	}
	return out
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	if err := s.store.Ping(c.Context()); err != nil {
		return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleListWines(c *fiber.Ctx) error {
	filter := database.WineFilter{
		InterestedNickname: c.Query("interested_nickname"),
	}
	// Malformed optional query parameters are ignored, not rejected.
	if raw := c.Query("interested_person_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filter.InterestedPersonID = &id
		}
	}

	wines, err := s.store.ListWines(c.Context(), filter)
	if err != nil {
		return renderError(c, apperr.NewInternal("failed to list wines", err))
	}
	return c.JSON(newWineResponses(wines))
}

func (s *Server) handleGetWine(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return renderError(c, apperr.NewInvalidArgument("invalid wine id"))
	}

	wine, err := s.store.GetWineByID(c.Context(), id)
	if err != nil {
		return renderError(c, apperr.NewInternal("failed to get wine", err))
	}
	if wine == nil {
		return renderError(c, apperr.NewNotFound("wine not found"))
	}
	return c.JSON(newWineResponse(*wine))
}

// parseDateParam returns the query parameter when it is a well-formed ISO 8601
// date and the empty string otherwise. A malformed date simply leaves the
// filter unapplied.
func parseDateParam(c *fiber.Ctx, name string) string {
	raw := c.Query(name)
	if raw == "" {
		return ""
	}
	if _, err := time.Parse("2006-01-02", raw); err != nil {
		return ""
	}
	return raw
}

func (s *Server) handleListEvents(c *fiber.Ctx) error {
	filter := database.EventFilter{
		DateBefore:         parseDateParam(c, "date_before"),
		DateAfter:          parseDateParam(c, "date_after"),
		InterestedNickname: c.Query("interested_nickname"),
	}
	if raw := c.Query("interested_person_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filter.InterestedPersonID = &id
		}
	}

	events, err := s.store.ListEvents(c.Context(), filter)
	if err != nil {
		return renderError(c, apperr.NewInternal("failed to list events", err))
	}
	return c.JSON(events)
}

func (s *Server) handleGetEvent(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return renderError(c, apperr.NewInvalidArgument("invalid event id"))
	}

	event, err := s.store.GetEventByID(c.Context(), id)
	if err != nil {
		return renderError(c, apperr.NewInternal("failed to get event", err))
	}
	if event == nil {
		return renderError(c, apperr.NewNotFound("event not found"))
	}
	return c.JSON(event)
}

type personRequest struct {
	Nickname  string `json:"nickname"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	GradeID   *int64 `json:"grade_id"`
}

func (s *Server) handleListPersons(c *fiber.Ctx) error {
	persons, err := s.store.ListPersons(c.Context())
	if err != nil {
		return renderError(c, apperr.NewInternal("failed to list persons", err))
	}
	return c.JSON(persons)
}

func (s *Server) handleCreatePerson(c *fiber.Ctx) error {
	var req personRequest
	if err := c.BodyParser(&req); err != nil {
		return renderError(c, apperr.NewInvalidArgument("invalid request body"))
	}
	if req.Nickname == "" {
		return renderError(c, apperr.NewInvalidArgument("nickname is required"))
	}

	person := &database.Person{
		Nickname:  req.Nickname,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		GradeID:   req.GradeID,
	}
	if err := s.store.CreatePerson(c.Context(), person); err != nil {
		return renderError(c, apperr.NewInternal("failed to create person", err))
	}
	return c.Status(http.StatusCreated).JSON(person)
}

func (s *Server) handleGetPerson(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return renderError(c, apperr.NewInvalidArgument("invalid person id"))
	}

	person, err := s.store.GetPersonByID(c.Context(), id)
	if err != nil {
		return renderError(c, apperr.NewInternal("failed to get person", err))
	}
	if person == nil {
		return renderError(c, apperr.NewNotFound("person not found"))
	}
	return c.JSON(person)
}

func (s *Server) handleUpdatePerson(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return renderError(c, apperr.NewInvalidArgument("invalid person id"))
	}

	var req personRequest
	if err := c.BodyParser(&req); err != nil {
		return renderError(c, apperr.NewInvalidArgument("invalid request body"))
	}
	if req.Nickname == "" {
		return renderError(c, apperr.NewInvalidArgument("nickname is required"))
	}

	person, err := s.store.GetPersonByID(c.Context(), id)
	if err != nil {
		return renderError(c, apperr.NewInternal("failed to get person", err))
	}
	if person == nil {
		return renderError(c, apperr.NewNotFound("person not found"))
	}

	person.Nickname = req.Nickname
	person.FirstName = req.FirstName
	person.LastName = req.LastName
	person.Phone = req.Phone
	person.GradeID = req.GradeID

	if err := s.store.UpdatePerson(c.Context(), person); err != nil {
		return renderError(c, apperr.NewInternal("failed to update person", err))
	}
	return c.JSON(person)
}

func (s *Server) handleDeletePerson(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return renderError(c, apperr.NewInvalidArgument("invalid person id"))
	}

	person, err := s.store.GetPersonByID(c.Context(), id)
	if err != nil {
		return renderError(c, apperr.NewInternal("failed to get person", err))
	}
	if person == nil {
		return renderError(c, apperr.NewNotFound("person not found"))
	}

	if err := s.store.DeletePerson(c.Context(), id); err != nil {
		return renderError(c, apperr.NewInternal("failed to delete person", err))
	}
	return c.SendStatus(http.StatusNoContent)
}

type bindTelegramRequest struct {
	TelegramID *int64 `json:"telegram_id"`
	Key        string `json:"key"`
}

func (s *Server) handleBindTelegram(c *fiber.Ctx) error {
	var req bindTelegramRequest
	if err := c.BodyParser(&req); err != nil {
		return renderError(c, apperr.NewInvalidArgument("telegram_id must be an integer"))
	}

	person, err := s.binding.Bind(c.Context(), req.Key, req.TelegramID)
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(person)
}

type wineInterestRequest struct {
	Nickname string `json:"nickname"`
	WineID   *int64 `json:"wine_id"`
}

func (s *Server) handleWineInterest(c *fiber.Ctx) error {
	var req wineInterestRequest
	if err := c.BodyParser(&req); err != nil {
		return renderError(c, apperr.NewInvalidArgument("invalid request body"))
	}

	displayName, err := s.interest.NotifyWineInterest(c.Context(), req.Nickname, req.WineID)
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "notification sent",
		"wine":    displayName,
	})
}

type eventInterestRequest struct {
	Nickname string `json:"nickname"`
	EventID  *int64 `json:"event_id"`
}

func (s *Server) handleEventInterest(c *fiber.Ctx) error {
	var req eventInterestRequest
	if err := c.BodyParser(&req); err != nil {
		return renderError(c, apperr.NewInvalidArgument("invalid request body"))
	}

	eventName, err := s.interest.NotifyEventInterest(c.Context(), req.Nickname, req.EventID)
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "notification sent",
		"event":   eventName,
	})
}
