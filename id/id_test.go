package id_test

import (
	"strings"
	"testing"

	"github.com/WebQx/triage/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"ItemID", id.NewItemID, "item_"},
		{"WorkerID", id.NewWorkerID, "wkr_"},
		{"DeadLetterID", id.NewDeadLetterID, "dl_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestNewIsUnique(t *testing.T) {
	a := id.NewItemID()
	b := id.NewItemID()
	if a.String() == b.String() {
		t.Fatalf("expected distinct IDs, both were %q", a)
	}
}

func TestParseRoundTrip(t *testing.T) {
	orig := id.NewItemID()

	parsed, err := id.ParseItemID(orig.String())
	if err != nil {
		t.Fatalf("ParseItemID: %v", err)
	}
	if parsed.String() != orig.String() {
		t.Errorf("round trip mismatch: %q != %q", parsed, orig)
	}
	if parsed.Prefix() != id.PrefixItem {
		t.Errorf("expected prefix %q, got %q", id.PrefixItem, parsed.Prefix())
	}
}

func TestParseWithPrefixMismatch(t *testing.T) {
	itemID := id.NewItemID()
	if _, err := id.ParseWorkerID(itemID.String()); err == nil {
		t.Fatal("expected error parsing item ID as worker ID")
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Fatal("expected error for empty string")
	}
}

func TestNilID(t *testing.T) {
	if !id.Nil.IsNil() {
		t.Fatal("Nil should report IsNil")
	}
	if id.Nil.String() != "" {
		t.Errorf("Nil.String() = %q, want empty", id.Nil.String())
	}
	if id.Nil.Prefix() != "" {
		t.Errorf("Nil.Prefix() = %q, want empty", id.Nil.Prefix())
	}
}

func TestTextMarshalling(t *testing.T) {
	orig := id.NewDeadLetterID()

	data, err := orig.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}

	var back id.ID
	if err := back.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if back.String() != orig.String() {
		t.Errorf("text round trip mismatch: %q != %q", back, orig)
	}

	var nilBack id.ID
	if err := nilBack.UnmarshalText(nil); err != nil {
		t.Fatalf("UnmarshalText(nil): %v", err)
	}
	if !nilBack.IsNil() {
		t.Error("unmarshalling empty text should yield Nil")
	}
}
