package util

import (
	"testing"
	"time"
)

func TestStrftimeToLayout(t *testing.T) {
	cases := map[string]string{
		"%d-%b-%Y":   "02-Jan-2006",
		"%d/%m/%Y":   "02/01/2006",
		"%Y-%m-%d":   "2006-01-02",
		"2006-01-02": "2006-01-02",
	}
	for in, want := range cases {
		got, err := StrftimeToLayout(in)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", in, err)
		}
		if got != want {
			t.Fatalf("%s: got %q want %q", in, got, want)
		}
	}
}

func TestStrftimeToLayoutRejectsUnknownVerb(t *testing.T) {
	if _, err := StrftimeToLayout("%Q-%Y"); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := StrftimeToLayout("%Y-%"); err == nil {
		t.Fatalf("expected error for dangling verb")
	}
}

func TestParseDate(t *testing.T) {
	got, ok := ParseDate("02-Jan-2006", " 25-Aug-2025 ")
	if !ok {
		t.Fatalf("expected ok")
	}
	want := time.Date(2025, 8, 25, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("unexpected date %v", got)
	}
	if _, ok := ParseDate("02-Jan-2006", "2025-08-25"); ok {
		t.Fatalf("expected layout mismatch to fail")
	}
}
