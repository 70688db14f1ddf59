package database_test

import (
	"testing"

	"github.com/dmitrofanov/sx-wine-backend/internal/database"
)

func TestWineFullName(t *testing.T) {
	t.Parallel()

	year := int64(2019)
	caption := "Reserve"
	empty := ""

	tests := []struct {
		name     string
		wine     database.Wine
		expected string
	}{
		{
			name:     "name and producer only",
			wine:     database.Wine{Name: "Merlot", Producer: database.Producer{Name: "Acme"}},
			expected: "Merlot - Acme",
		},
		{
			name:     "with aging year",
			wine:     database.Wine{Name: "Merlot", Producer: database.Producer{Name: "Acme"}, Aging: &year},
			expected: "Merlot - Acme - 2019",
		},
		{
			name: "with aging caption and year",
			wine: database.Wine{
				Name:         "Merlot",
				Producer:     database.Producer{Name: "Acme"},
				AgingCaption: &caption,
				Aging:        &year,
			},
			expected: "Merlot - Acme - Reserve - 2019",
		},
		{
			name:     "no producer",
			wine:     database.Wine{Name: "Merlot"},
			expected: "Merlot",
		},
		{
			name: "empty caption skipped",
			wine: database.Wine{
				Name:         "Merlot",
				Producer:     database.Producer{Name: "Acme"},
				AgingCaption: &empty,
				Aging:        &year,
			},
			expected: "Merlot - Acme - 2019",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.wine.FullName(); got != tt.expected {
				t.Errorf("FullName() = %q, want %q", got, tt.expected)
			}
		})
	}
}
