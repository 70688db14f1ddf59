package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dmitrofanov/sx-wine-backend/internal/config"
	"github.com/dmitrofanov/sx-wine-backend/internal/database"
	"github.com/dmitrofanov/sx-wine-backend/internal/notifier"
	"github.com/dmitrofanov/sx-wine-backend/internal/server"
	"github.com/dmitrofanov/sx-wine-backend/internal/service"
)

type fakeNotifier struct {
	err  error
	sent []string
}

func (f *fakeNotifier) Send(_ context.Context, text string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, text)
	return nil
}

func newTestServer(t *testing.T, n notifier.Notifier) (*server.Server, *sqlx.DB) {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := database.NewStore(db, log)

	srv := server.New(
		config.ServerConfig{Addr: ":0", ReadTimeout: 15 * time.Second, ShutdownTimeout: time.Second},
		store,
		service.NewBindingService(store, log),
		service.NewInterestService(store, n, log),
		log,
	)
	seed(t, db)
	return srv, db
}

func seed(t *testing.T, db *sqlx.DB) {
	t.Helper()

	now := time.Now().UTC()
	statements := []struct {
		query string
		args  []interface{}
	}{
		{`INSERT INTO producers (id, name, description) VALUES (1, 'Acme', '')`, nil},
		{`INSERT INTO wine_categories (id, name) VALUES (1, 'Still')`, nil},
		{`INSERT INTO wine_sugars (id, name) VALUES (1, 'Dry')`, nil},
		{`INSERT INTO wine_colors (id, name) VALUES (1, 'Red')`, nil},
		{`INSERT INTO countries (id, name) VALUES (1, 'France')`, nil},
		{`INSERT INTO regions (id, name) VALUES (1, 'Bordeaux')`, nil},
		{`INSERT INTO cities (id, name) VALUES (1, 'Moscow')`, nil},
		{`INSERT INTO wines (id, name, saved, category_id, sugar_id, color_id, country_id, region_id, producer_id,
                             volume, aging, description, created_at, updated_at)
          VALUES (1, 'Merlot', 0, 1, 1, 1, 1, 1, 1, 0.75, 2019, '', ?, ?)`, []interface{}{now, now}},
		{`INSERT INTO events (id, name, date, city_id, place, address, price, available, producer_id, created_at, updated_at)
          VALUES (1, 'Spring tasting', '2026-05-01', 1, 'Wine Hall', 'Main st. 1', 1000, 20, 1, ?, ?)`, []interface{}{now, now}},
		{`INSERT INTO events (id, name, date, city_id, place, address, price, available, producer_id, created_at, updated_at)
          VALUES (2, 'Summer tasting', '2026-06-15', 1, 'Wine Hall', 'Main st. 1', 1500, 30, 1, ?, ?)`, []interface{}{now, now}},
		{`INSERT INTO persons (id, nickname, first_name, key, created_at, updated_at)
          VALUES (1, 'alice', 'Alice', 'k-alice', ?, ?)`, []interface{}{now, now}},
		{`INSERT INTO persons (id, nickname, first_name, telegram_id, created_at, updated_at)
          VALUES (2, 'bob', 'Bob', 999, ?, ?)`, []interface{}{now, now}},
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt.query, stmt.args...); err != nil {
			t.Fatalf("failed to seed database: %v", err)
		}
	}
}

func doJSON(t *testing.T, srv *server.Server, method, target string, body string) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := srv.App().Test(req, -1)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, target, err)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	if len(raw) == 0 {
		return resp, nil
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		// List endpoints return arrays; callers decode those themselves.
		return resp, nil
	}
	return resp, decoded
}

func listLen(t *testing.T, srv *server.Server, target string) int {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, nil)
	resp, err := srv.App().Test(req, -1)
	if err != nil {
		t.Fatalf("request GET %s failed: %v", target, err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s status = %d, want 200", target, resp.StatusCode)
	}

	var items []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		t.Fatalf("failed to decode list response: %v", err)
	}
	return len(items)
}

func TestEventDateFilters(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, &fakeNotifier{})

	// Malformed dates leave the filter unapplied, they are not an error.
	if got := listLen(t, srv, "/api/events?date_before=not-a-date"); got != 2 {
		t.Errorf("events with malformed date_before = %d, want 2", got)
	}
	if got := listLen(t, srv, "/api/events?date_before=2026-05-01"); got != 1 {
		t.Errorf("events before 2026-05-01 = %d, want 1 (inclusive bound)", got)
	}
	if got := listLen(t, srv, "/api/events?date_after=2026-05-02"); got != 1 {
		t.Errorf("events after 2026-05-02 = %d, want 1", got)
	}
}

func TestWineInterest(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		n := &fakeNotifier{}
		srv, _ := newTestServer(t, n)

		resp, body := doJSON(t, srv, http.MethodPost, "/api/notifications/wine-interest",
			`{"nickname": "alice", "wine_id": 1}`)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		if body["success"] != true {
			t.Errorf("success = %v, want true", body["success"])
		}
		if body["wine"] != "Merlot - Acme - 2019" {
			t.Errorf("wine = %v, want display name", body["wine"])
		}
		if len(n.sent) != 1 || n.sent[0] != "alice is interested in Merlot - Acme - 2019" {
			t.Errorf("sent messages = %v", n.sent)
		}
	})

	t.Run("missing nickname", func(t *testing.T) {
		t.Parallel()
		n := &fakeNotifier{}
		srv, db := newTestServer(t, n)

		resp, body := doJSON(t, srv, http.MethodPost, "/api/notifications/wine-interest",
			`{"wine_id": 1}`)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", resp.StatusCode)
		}
		if body["error"] == nil {
			t.Errorf("missing error message in body: %v", body)
		}
		if len(n.sent) != 0 {
			t.Errorf("notifier invoked on invalid input")
		}

		var count int
		if err := db.Get(&count, `SELECT COUNT(1) FROM person_interested_wines`); err != nil {
			t.Fatalf("failed to count interest facts: %v", err)
		}
		if count != 0 {
			t.Errorf("interest recorded on invalid input")
		}
	})

	t.Run("unconfigured notifier still records interest", func(t *testing.T) {
		t.Parallel()
		log := slog.New(slog.NewTextHandler(io.Discard, nil))
		unconfigured, err := notifier.NewTelegramNotifier("", 0, time.Second, log)
		if err != nil {
			t.Fatalf("failed to build unconfigured notifier: %v", err)
		}
		srv, db := newTestServer(t, unconfigured)

		resp, body := doJSON(t, srv, http.MethodPost, "/api/notifications/wine-interest",
			`{"nickname": "alice", "wine_id": 1}`)
		if resp.StatusCode != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", resp.StatusCode)
		}
		if body["error"] != "notifier not configured" {
			t.Errorf("error = %v, want %q", body["error"], "notifier not configured")
		}

		var count int
		if err := db.Get(&count, `SELECT COUNT(1) FROM person_interested_wines WHERE person_id = 1 AND wine_id = 1`); err != nil {
			t.Fatalf("failed to count interest facts: %v", err)
		}
		if count != 1 {
			t.Errorf("interest facts = %d, want 1 despite notification failure", count)
		}
	})

	t.Run("unknown wine", func(t *testing.T) {
		t.Parallel()
		srv, _ := newTestServer(t, &fakeNotifier{})

		resp, _ := doJSON(t, srv, http.MethodPost, "/api/notifications/wine-interest",
			`{"nickname": "alice", "wine_id": 42}`)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})
}

func TestEventInterest(t *testing.T) {
	t.Parallel()
	n := &fakeNotifier{}
	srv, _ := newTestServer(t, n)

	resp, body := doJSON(t, srv, http.MethodPost, "/api/notifications/event-interest",
		`{"nickname": "alice", "event_id": 1}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["event"] != "Spring tasting" {
		t.Errorf("event = %v, want %q", body["event"], "Spring tasting")
	}
	if len(n.sent) != 1 {
		t.Errorf("sent messages = %v, want exactly one", n.sent)
	}
}

func TestBindTelegram(t *testing.T) {
	t.Parallel()

	t.Run("flow", func(t *testing.T) {
		t.Parallel()
		srv, _ := newTestServer(t, &fakeNotifier{})

		resp, body := doJSON(t, srv, http.MethodPost, "/api/auth/bind-telegram",
			`{"telegram_id": 555, "key": "k-alice"}`)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		if body["nickname"] != "alice" {
			t.Errorf("nickname = %v, want alice", body["nickname"])
		}
		if body["telegram_id"] != float64(555) {
			t.Errorf("telegram_id = %v, want 555", body["telegram_id"])
		}
		if _, exposed := body["key"]; exposed {
			t.Errorf("one-time key exposed in response")
		}

		// The key is single-use.
		resp, _ = doJSON(t, srv, http.MethodPost, "/api/auth/bind-telegram",
			`{"telegram_id": 556, "key": "k-alice"}`)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("second bind status = %d, want 404", resp.StatusCode)
		}
	})

	t.Run("identity already bound elsewhere", func(t *testing.T) {
		t.Parallel()
		srv, _ := newTestServer(t, &fakeNotifier{})

		// 999 belongs to bob.
		resp, _ := doJSON(t, srv, http.MethodPost, "/api/auth/bind-telegram",
			`{"telegram_id": 999, "key": "k-alice"}`)
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("status = %d, want 409", resp.StatusCode)
		}
	})

	t.Run("malformed telegram id", func(t *testing.T) {
		t.Parallel()
		srv, _ := newTestServer(t, &fakeNotifier{})

		resp, _ := doJSON(t, srv, http.MethodPost, "/api/auth/bind-telegram",
			`{"telegram_id": "abc", "key": "k-alice"}`)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("missing key", func(t *testing.T) {
		t.Parallel()
		srv, _ := newTestServer(t, &fakeNotifier{})

		resp, _ := doJSON(t, srv, http.MethodPost, "/api/auth/bind-telegram",
			`{"telegram_id": 555}`)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})
}

func TestGetWine(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, &fakeNotifier{})

	resp, body := doJSON(t, srv, http.MethodGet, "/api/wines/1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["display_name"] != "Merlot - Acme - 2019" {
		t.Errorf("display_name = %v, want %q", body["display_name"], "Merlot - Acme - 2019")
	}

	resp, _ = doJSON(t, srv, http.MethodGet, "/api/wines/42", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing wine status = %d, want 404", resp.StatusCode)
	}
}

func TestPersonEndpoints(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, &fakeNotifier{})

	resp, body := doJSON(t, srv, http.MethodPost, "/api/persons",
		`{"nickname": "carol", "first_name": "Carol"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	id := strconv.Itoa(int(body["id"].(float64)))

	resp, body = doJSON(t, srv, http.MethodGet, "/api/persons/"+id, "")
	if resp.StatusCode != http.StatusOK || body["nickname"] != "carol" {
		t.Fatalf("get person = %d %v", resp.StatusCode, body)
	}

	resp, _ = doJSON(t, srv, http.MethodDelete, "/api/persons/"+id, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", resp.StatusCode)
	}

	resp, _ = doJSON(t, srv, http.MethodGet, "/api/persons/"+id, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", resp.StatusCode)
	}
}
