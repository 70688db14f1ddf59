package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Sentinel errors returned by the binding operation. The service layer maps
// them onto the API error taxonomy.
var (
	// ErrKeyNotFound means no person holds the given one-time key. A key
	// consumed by a concurrent bind reports the same way: once consumed it is
	// indistinguishable from a key that never existed.
	ErrKeyNotFound = errors.New("one-time key not found")

	// ErrTelegramIDTaken means the telegram identity is already bound to a
	// different person.
	ErrTelegramIDTaken = errors.New("telegram id already bound to a different person")
)

// WineFilter narrows wine listings. Zero values leave the filter unapplied.
type WineFilter struct {
	InterestedNickname string
	InterestedPersonID *int64
}

// EventFilter narrows event listings. Date bounds are inclusive ISO 8601
// (YYYY-MM-DD) strings; empty strings leave the bound unapplied.
type EventFilter struct {
	DateBefore         string
	DateAfter          string
	InterestedNickname string
	InterestedPersonID *int64
}

// Store defines the interface for database operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// GetPersonByID retrieves a person by primary key. Returns nil, nil if not found.
	GetPersonByID(ctx context.Context, id int64) (*Person, error)

	// GetPersonByNickname retrieves a person by exact nickname. Returns nil, nil if not found.
	GetPersonByNickname(ctx context.Context, nickname string) (*Person, error)

	// ListPersons retrieves all persons ordered by nickname.
	ListPersons(ctx context.Context) ([]Person, error)

	// CreatePerson inserts a new person record and sets its generated ID.
	CreatePerson(ctx context.Context, person *Person) error

	// UpdatePerson updates the mutable fields of an existing person.
	UpdatePerson(ctx context.Context, person *Person) error

	// DeletePerson removes a person record.
	DeletePerson(ctx context.Context, id int64) error

	// BindTelegram consumes the one-time key and binds the telegram identity
	// to the person holding it, as a single atomic unit. It returns
	// ErrKeyNotFound when no person holds the key (or the key was consumed
	// concurrently) and ErrTelegramIDTaken when another person already has
	// the identity bound.
	BindTelegram(ctx context.Context, key string, telegramID int64) (*Person, error)

	// GetWineByID retrieves a wine with its reference entities and grape
	// composition. Returns nil, nil if not found.
	GetWineByID(ctx context.Context, id int64) (*Wine, error)

	// ListWines retrieves wines matching the filter, ordered by name.
	ListWines(ctx context.Context, filter WineFilter) ([]Wine, error)

	// GetEventByID retrieves an event with its wine list. Returns nil, nil if not found.
	GetEventByID(ctx context.Context, id int64) (*Event, error)

	// ListEvents retrieves events matching the filter, ordered by date then name.
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)

	// AddWineInterest records that a person is interested in a wine.
	// Recording an existing pair is a no-op.
	AddWineInterest(ctx context.Context, personID, wineID int64) error

	// AddEventInterest records that a person is interested in an event.
	// Recording an existing pair is a no-op.
	AddEventInterest(ctx context.Context, personID, eventID int64) error

	// RunMaintenance performs database maintenance tasks like VACUUM.
	RunMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const personColumns = `id, nickname, first_name, last_name, phone, grade_id, telegram_id, key, created_at, updated_at`

func (s *sqlxStore) GetPersonByID(ctx context.Context, id int64) (*Person, error) {
	var person Person
	err := s.db.GetContext(ctx, &person, `SELECT `+personColumns+` FROM persons WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get person %d: %w", id, err)
	}
	return &person, nil
}

func (s *sqlxStore) GetPersonByNickname(ctx context.Context, nickname string) (*Person, error) {
	var person Person
	err := s.db.GetContext(ctx, &person, `SELECT `+personColumns+` FROM persons WHERE nickname = ?`, nickname)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get person by nickname %q: %w", nickname, err)
	}
	return &person, nil
}

func (s *sqlxStore) ListPersons(ctx context.Context) ([]Person, error) {
	persons := []Person{}
	err := s.db.SelectContext(ctx, &persons, `SELECT `+personColumns+` FROM persons ORDER BY nickname`)
	if err != nil {
		return nil, fmt.Errorf("failed to list persons: %w", err)
	}
	return persons, nil
}

func (s *sqlxStore) CreatePerson(ctx context.Context, person *Person) error {
	if person == nil {
		return fmt.Errorf("cannot create nil person")
	}
	if person.Nickname == "" {
		return fmt.Errorf("person must have a non-empty nickname")
	}

	now := time.Now().UTC()
	person.CreatedAt = now
	person.UpdatedAt = now

	query := `
        INSERT INTO persons (nickname, first_name, last_name, phone, grade_id, telegram_id, key, created_at, updated_at)
        VALUES (:nickname, :first_name, :last_name, :phone, :grade_id, :telegram_id, :key, :created_at, :updated_at);
    `
	result, err := s.db.NamedExecContext(ctx, query, person)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error creating person", "nickname", person.Nickname, "error", err)
		return fmt.Errorf("failed to create person %q: %w", person.Nickname, err)
	}

	id, err := result.LastInsertId()
	if err == nil {
		person.ID = id
	} else {
		s.logger.WarnContext(ctx, "Could not retrieve last insert ID after creating person",
			"nickname", person.Nickname, "error", err)
	}

	s.logger.DebugContext(ctx, "Person created", "person_id", person.ID, "nickname", person.Nickname)
	return nil
}

func (s *sqlxStore) UpdatePerson(ctx context.Context, person *Person) error {
	if person == nil {
		return fmt.Errorf("cannot update nil person")
	}

	person.UpdatedAt = time.Now().UTC()

	query := `
        UPDATE persons
        SET nickname = :nickname, first_name = :first_name, last_name = :last_name,
            phone = :phone, grade_id = :grade_id, telegram_id = :telegram_id,
            key = :key, updated_at = :updated_at
        WHERE id = :id;
    `
	result, err := s.db.NamedExecContext(ctx, query, person)
	if err != nil {
		return fmt.Errorf("failed to update person %d: %w", person.ID, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *sqlxStore) DeletePerson(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM persons WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete person %d: %w", id, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// BindTelegram applies the lookup-check-mutate sequence in one transaction.
// The final UPDATE re-checks the key so two simultaneous binds with the same
// key cannot both succeed even if they both passed the SELECT.
func (s *sqlxStore) BindTelegram(ctx context.Context, key string, telegramID int64) (*Person, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				if !errors.Is(rollbackErr, sql.ErrTxDone) {
					s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
				}
			}
		}
	}()

	var person Person
	err = tx.GetContext(ctx, &person, `SELECT `+personColumns+` FROM persons WHERE key = ?`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to look up key: %w", err)
	}

	var taken int
	err = tx.GetContext(ctx, &taken, `SELECT COUNT(1) FROM persons WHERE telegram_id = ? AND id <> ?`, telegramID, person.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check telegram id uniqueness: %w", err)
	}
	if taken > 0 {
		return nil, ErrTelegramIDTaken
	}

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`UPDATE persons SET telegram_id = ?, key = NULL, updated_at = ? WHERE id = ? AND key = ?`,
		telegramID, now, person.ID, key)
	if err != nil {
		return nil, fmt.Errorf("failed to bind telegram id: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check bind result: %w", err)
	}
	if affected == 0 {
		// Key was consumed between the SELECT and the UPDATE.
		return nil, ErrKeyNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	person.TelegramID = &telegramID
	person.Key = nil
	person.UpdatedAt = now

	s.logger.InfoContext(ctx, "Telegram identity bound",
		"person_id", person.ID, "nickname", person.Nickname, "telegram_id", telegramID)
	return &person, nil
}

const wineJoinedColumns = `w.id, w.name, w.image, w.saved, w.volume, w.price, w.aging, w.aging_caption, w.description,
       w.created_at, w.updated_at,
       p.id AS "producer.id", p.name AS "producer.name", p.description AS "producer.description",
       cat.id AS "category.id", cat.name AS "category.name",
       s.id AS "sugar.id", s.name AS "sugar.name",
       col.id AS "color.id", col.name AS "color.name",
       cn.id AS "country.id", cn.name AS "country.name",
       r.id AS "region.id", r.name AS "region.name"`

const wineSelect = `
SELECT ` + wineJoinedColumns + `
FROM wines w
JOIN producers p ON p.id = w.producer_id
JOIN wine_categories cat ON cat.id = w.category_id
JOIN wine_sugars s ON s.id = w.sugar_id
JOIN wine_colors col ON col.id = w.color_id
JOIN countries cn ON cn.id = w.country_id
JOIN regions r ON r.id = w.region_id`

func (s *sqlxStore) GetWineByID(ctx context.Context, id int64) (*Wine, error) {
	var wine Wine
	err := s.db.GetContext(ctx, &wine, wineSelect+` WHERE w.id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get wine %d: %w", id, err)
	}

	wines := []Wine{wine}
	if err := s.attachGrapes(ctx, wines); err != nil {
		return nil, err
	}
	return &wines[0], nil
}

func (s *sqlxStore) ListWines(ctx context.Context, filter WineFilter) ([]Wine, error) {
	query := wineSelect
	var clauses []string
	var args []interface{}

	if filter.InterestedNickname != "" {
		clauses = append(clauses,
			`w.id IN (SELECT iw.wine_id FROM person_interested_wines iw
                      JOIN persons pe ON pe.id = iw.person_id WHERE pe.nickname = ?)`)
		args = append(args, filter.InterestedNickname)
	}
	if filter.InterestedPersonID != nil {
		clauses = append(clauses,
			`w.id IN (SELECT wine_id FROM person_interested_wines WHERE person_id = ?)`)
		args = append(args, *filter.InterestedPersonID)
	}
	for i, clause := range clauses {
		if i == 0 {
			query += ` WHERE ` + clause
		} else {
			query += ` AND ` + clause
		}
	}
	query += ` ORDER BY w.name`

	wines := []Wine{}
	if err := s.db.SelectContext(ctx, &wines, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list wines: %w", err)
	}
	if err := s.attachGrapes(ctx, wines); err != nil {
		return nil, err
	}
	return wines, nil
}

// attachGrapes loads the grape composition for all given wines in one query
// and attaches each share to its wine.
func (s *sqlxStore) attachGrapes(ctx context.Context, wines []Wine) error {
	if len(wines) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(wines))
	for i := range wines {
		wines[i].Grapes = []GrapeShare{}
		ids = append(ids, wines[i].ID)
	}

	query, args, err := sqlx.In(`
        SELECT wgc.wine_id, wgc.percentage,
               gv.id AS "variety.id", gv.name AS "variety.name"
        FROM wine_grape_compositions wgc
        JOIN grape_varieties gv ON gv.id = wgc.grape_variety_id
        WHERE wgc.wine_id IN (?)
        ORDER BY wgc.percentage DESC, gv.name`, ids)
	if err != nil {
		return fmt.Errorf("failed to build grape composition query: %w", err)
	}

	shares := []GrapeShare{}
	if err := s.db.SelectContext(ctx, &shares, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to load grape compositions: %w", err)
	}

	byWine := make(map[int64][]GrapeShare, len(wines))
	for _, share := range shares {
		byWine[share.WineID] = append(byWine[share.WineID], share)
	}
	for i := range wines {
		if grapes, ok := byWine[wines[i].ID]; ok {
			wines[i].Grapes = grapes
		}
	}
	return nil
}

const eventSelect = `
SELECT e.id, e.name, e.date, e.time, e.place, e.address, e.price, e.available, e.image,
       e.created_at, e.updated_at,
       c.id AS "city.id", c.name AS "city.name",
       p.id AS "producer.id", p.name AS "producer.name", p.description AS "producer.description"
FROM events e
JOIN cities c ON c.id = e.city_id
JOIN producers p ON p.id = e.producer_id`

func (s *sqlxStore) GetEventByID(ctx context.Context, id int64) (*Event, error) {
	var event Event
	err := s.db.GetContext(ctx, &event, eventSelect+` WHERE e.id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get event %d: %w", id, err)
	}

	events := []Event{event}
	if err := s.attachWineLists(ctx, events); err != nil {
		return nil, err
	}
	return &events[0], nil
}

func (s *sqlxStore) ListEvents(ctx context.Context, filter EventFilter) ([]Event, error) {
	query := eventSelect
	var clauses []string
	var args []interface{}

	if filter.DateBefore != "" {
		clauses = append(clauses, `e.date <= ?`)
		args = append(args, filter.DateBefore)
	}
	if filter.DateAfter != "" {
		clauses = append(clauses, `e.date >= ?`)
		args = append(args, filter.DateAfter)
	}
	if filter.InterestedNickname != "" {
		clauses = append(clauses,
			`e.id IN (SELECT ie.event_id FROM person_interested_events ie
                      JOIN persons pe ON pe.id = ie.person_id WHERE pe.nickname = ?)`)
		args = append(args, filter.InterestedNickname)
	}
	if filter.InterestedPersonID != nil {
		clauses = append(clauses,
			`e.id IN (SELECT event_id FROM person_interested_events WHERE person_id = ?)`)
		args = append(args, *filter.InterestedPersonID)
	}
	for i, clause := range clauses {
		if i == 0 {
			query += ` WHERE ` + clause
		} else {
			query += ` AND ` + clause
		}
	}
	query += ` ORDER BY e.date, e.name`

	events := []Event{}
	if err := s.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	if err := s.attachWineLists(ctx, events); err != nil {
		return nil, err
	}
	return events, nil
}

// eventWineRow carries a wine row joined with the event it belongs to.
type eventWineRow struct {
	EventID int64 `db:"event_id"`
	Wine
}

// attachWineLists loads the wine list for all given events in one query.
func (s *sqlxStore) attachWineLists(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(events))
	for i := range events {
		events[i].WineList = []Wine{}
		ids = append(ids, events[i].ID)
	}

	query, args, err := sqlx.In(`
        SELECT ew.event_id, `+wineJoinedColumns+`
        FROM event_wines ew
        JOIN wines w ON w.id = ew.wine_id
        JOIN producers p ON p.id = w.producer_id
        JOIN wine_categories cat ON cat.id = w.category_id
        JOIN wine_sugars s ON s.id = w.sugar_id
        JOIN wine_colors col ON col.id = w.color_id
        JOIN countries cn ON cn.id = w.country_id
        JOIN regions r ON r.id = w.region_id
        WHERE ew.event_id IN (?)
        ORDER BY w.name`, ids)
	if err != nil {
		return fmt.Errorf("failed to build event wine list query: %w", err)
	}

	rows := []eventWineRow{}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to load event wine lists: %w", err)
	}

	wines := make([]Wine, len(rows))
	for i, row := range rows {
		wines[i] = row.Wine
	}
	if err := s.attachGrapes(ctx, wines); err != nil {
		return err
	}

	byEvent := make(map[int64][]Wine, len(events))
	for i, row := range rows {
		byEvent[row.EventID] = append(byEvent[row.EventID], wines[i])
	}
	for i := range events {
		if list, ok := byEvent[events[i].ID]; ok {
			events[i].WineList = list
		}
	}
	return nil
}

func (s *sqlxStore) AddWineInterest(ctx context.Context, personID, wineID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO person_interested_wines (person_id, wine_id) VALUES (?, ?)`,
		personID, wineID)
	if err != nil {
		return fmt.Errorf("failed to record wine interest (person %d, wine %d): %w", personID, wineID, err)
	}
	s.logger.DebugContext(ctx, "Wine interest recorded", "person_id", personID, "wine_id", wineID)
	return nil
}

func (s *sqlxStore) AddEventInterest(ctx context.Context, personID, eventID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO person_interested_events (person_id, event_id) VALUES (?, ?)`,
		personID, eventID)
	if err != nil {
		return fmt.Errorf("failed to record event interest (person %d, event %d): %w", personID, eventID, err)
	}
	s.logger.DebugContext(ctx, "Event interest recorded", "person_id", personID, "event_id", eventID)
	return nil
}

// RunMaintenance performs database maintenance tasks (VACUUM and ANALYZE).
func (s *sqlxStore) RunMaintenance(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Running database maintenance...")

	if _, err := s.db.ExecContext(ctx, `VACUUM;`); err != nil {
		return fmt.Errorf("failed to run VACUUM: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `ANALYZE;`); err != nil {
		return fmt.Errorf("failed to run ANALYZE: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance completed")
	return nil
}
