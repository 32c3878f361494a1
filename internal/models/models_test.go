package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestSpecificationsFillMissing(t *testing.T) {
	tests := []struct {
		name        string
		current     Specifications
		other       Specifications
		want        Specifications
		wantChanged bool
	}{
		{
			name:        "fills empty fields",
			current:     Specifications{Diameter: "6mm"},
			other:       Specifications{Diameter: "8mm", Weight: "15kg", Type: "softwood"},
			want:        Specifications{Diameter: "6mm", Weight: "15kg", Type: "softwood"},
			wantChanged: true,
		},
		{
			name:        "unknown is replaced by a known value",
			current:     Specifications{Weight: Unknown, Packaging: Unknown},
			other:       Specifications{Weight: "15kg", Packaging: "bags"},
			want:        Specifications{Weight: "15kg", Packaging: "bags"},
			wantChanged: true,
		},
		{
			name:        "known value is never replaced by unknown",
			current:     Specifications{Weight: "15kg"},
			other:       Specifications{Weight: Unknown},
			want:        Specifications{Weight: "15kg"},
			wantChanged: false,
		},
		{
			name:        "nothing to fill",
			current:     Specifications{Weight: "15kg", Grade: "ENplus A1"},
			other:       Specifications{},
			want:        Specifications{Weight: "15kg", Grade: "ENplus A1"},
			wantChanged: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := tt.current.FillMissing(tt.other)
			if got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
			if changed != tt.wantChanged {
				t.Errorf("Expected changed=%v, got %v", tt.wantChanged, changed)
			}
		})
	}
}

func TestGenerateSourceKey(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	price := decimal.NewFromInt(235)

	key1 := GenerateSourceKey("SIA Stali", "https://example.lv/p/1", "granulas", price, "EUR", at)
	key2 := GenerateSourceKey("SIA Stali", "https://example.lv/p/1", "granulas", decimal.RequireFromString("235.00"), "EUR", at)
	if key1 != key2 {
		t.Errorf("Expected equal keys for equal prices, got %s and %s", key1, key2)
	}
	if len(key1) != 40 {
		t.Errorf("Expected 40 hex chars, got %d", len(key1))
	}

	key3 := GenerateSourceKey("SIA Stali", "https://example.lv/p/1", "granulas", price, "EUR", at.Add(time.Second))
	if key1 == key3 {
		t.Error("Different timestamps should produce different keys")
	}

	if ObservationIDFromKey(key1) != ObservationIDFromKey(key2) {
		t.Error("Expected stable observation id for the same key")
	}
	if ObservationIDFromKey(key1) == ObservationIDFromKey(key3) {
		t.Error("Expected different observation ids for different keys")
	}
}
