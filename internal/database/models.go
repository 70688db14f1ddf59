package database

import (
	"strconv"
	"strings"
	"time"
)

// NamedRef is a simple named lookup row (category, color, sugar, country,
// region, city, grape variety, person grade).
type NamedRef struct {
	ID   int64  `db:"id"   json:"id"`
	Name string `db:"name" json:"name"`
}

// Producer represents a wine producer.
type Producer struct {
	ID          int64  `db:"id"          json:"id"`
	Name        string `db:"name"        json:"name"`
	Description string `db:"description" json:"description"`
}

// Person represents an attendee record. The one-time key is never exposed
// through the API; it is consumed by the telegram binding flow and cleared
// together with setting the telegram identity.
type Person struct {
	ID         int64     `db:"id"          json:"id"`
	Nickname   string    `db:"nickname"    json:"nickname"`
	FirstName  string    `db:"first_name"  json:"first_name"`
	LastName   string    `db:"last_name"   json:"last_name"`
	Phone      string    `db:"phone"       json:"phone"`
	GradeID    *int64    `db:"grade_id"    json:"grade_id"`
	TelegramID *int64    `db:"telegram_id" json:"telegram_id"`
	Key        *string   `db:"key"         json:"-"`
	CreatedAt  time.Time `db:"created_at"  json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"  json:"updated_at"`
}

// GrapeShare is one entry of a wine's grape composition.
type GrapeShare struct {
	WineID     int64    `db:"wine_id"    json:"-"`
	Variety    NamedRef `db:"variety"    json:"variety"`
	Percentage int      `db:"percentage" json:"percentage"`
}

// Wine represents a catalog wine with its reference entities resolved.
type Wine struct {
	ID           int64     `db:"id"            json:"id"`
	Name         string    `db:"name"          json:"name"`
	Image        *string   `db:"image"         json:"image"`
	Saved        bool      `db:"saved"         json:"saved"`
	Volume       float64   `db:"volume"        json:"volume"`
	Price        *int64    `db:"price"         json:"price"`
	Aging        *int64    `db:"aging"         json:"aging"`
	AgingCaption *string   `db:"aging_caption" json:"aging_caption"`
	Description  string    `db:"description"   json:"description"`
	Producer     Producer  `db:"producer"      json:"producer"`
	Category     NamedRef  `db:"category"      json:"category"`
	Sugar        NamedRef  `db:"sugar"         json:"sugar"`
	Color        NamedRef  `db:"color"         json:"color"`
	Country      NamedRef  `db:"country"       json:"country"`
	Region       NamedRef  `db:"region"        json:"region"`
	CreatedAt    time.Time `db:"created_at"    json:"-"`
	UpdatedAt    time.Time `db:"updated_at"    json:"-"`

	Grapes []GrapeShare `db:"-" json:"grape_varieties"`
}

// FullName derives the human-readable composite name: the wine name, the
// producer name, the aging caption, and the aging year, in that order,
// skipping absent parts, joined with " - ". It is recomputed on every read,
// never stored.
func (w *Wine) FullName() string {
	parts := []string{w.Name}
	if w.Producer.Name != "" {
		parts = append(parts, w.Producer.Name)
	}
	if w.AgingCaption != nil && *w.AgingCaption != "" {
		parts = append(parts, *w.AgingCaption)
	}
	if w.Aging != nil {
		parts = append(parts, strconv.FormatInt(*w.Aging, 10))
	}
	return strings.Join(parts, " - ")
}

// Event represents a tasting event. Date is kept in ISO 8601 form
// (YYYY-MM-DD); lexicographic comparison on it matches chronological order.
type Event struct {
	ID        int64     `db:"id"         json:"id"`
	Name      string    `db:"name"       json:"name"`
	Date      string    `db:"date"       json:"date"`
	Time      *string   `db:"time"       json:"time"`
	City      NamedRef  `db:"city"       json:"city"`
	Place     string    `db:"place"      json:"place"`
	Address   string    `db:"address"    json:"address"`
	Price     int64     `db:"price"      json:"price"`
	Available int64     `db:"available"  json:"available"`
	Producer  Producer  `db:"producer"   json:"producer"`
	Image     *string   `db:"image"      json:"image"`
	CreatedAt time.Time `db:"created_at" json:"-"`
	UpdatedAt time.Time `db:"updated_at" json:"-"`

	WineList []Wine `db:"-" json:"wine_list"`
}
