package cachekey

import (
	"strings"
	"testing"
)

func TestCalendarKeyUsesRawUrl(t *testing.T) {
	url := "http://x/cal.ics"
	if key := CalendarKey(url); key != "calendar_http://x/cal.ics" {
		t.Fatalf("Key for %s is %s", url, key)
	}
}

func TestCalendarKeyDoesNotNormalize(t *testing.T) {
	keys := map[string]bool{
		CalendarKey("http://x/cal.ics"):  true,
		CalendarKey("http://x/cal.ics "): true,
		CalendarKey("HTTP://X/cal.ics"):  true,
	}
	if len(keys) != 3 {
		t.Fatalf("Expected 3 distinct keys, got %d", len(keys))
	}
}

func TestRealizationKey(t *testing.T) {
	if key := RealizationKey("abc123"); key != "realization_abc123" {
		t.Fatalf("Key is %s", key)
	}
}

func TestKindsDoNotCollide(t *testing.T) {
	if strings.HasPrefix(RealizationKey("x"), CalendarKey("")) {
		t.Fatalf("Realization key has calendar prefix")
	}
}

func TestKind(t *testing.T) {
	tests := map[string]string{
		CalendarKey("http://x/cal.ics"): KindCalendar,
		RealizationKey("abc"):           KindRealization,
		"something_else":                "",
		"nokind":                        "",
	}
	for key, kind := range tests {
		if k := Kind(key); k != kind {
			t.Fatalf("Kind of %s is %q, expected %q", key, k, kind)
		}
	}
}
