package ingest

import (
	"testing"
	"time"

	"github.com/tmcfarland/usagedeck/internal/domain"
)

func testEvent(eventType, user string) domain.Event {
	return domain.Event{
		Type:      eventType,
		User:      user,
		CreatedAt: time.Date(2023, 7, 6, 10, 0, 0, 0, time.UTC),
	}
}

func TestFilterExcludesUsersAndTypeSubstrings(t *testing.T) {
	filter := Exclusions{
		Users:          []string{"78673c9a-6e61-4d23-892e-be594868a83b", " "},
		TypeSubstrings: []string{"BACKEND", ""},
	}.Filter()

	events := []domain.Event{
		testEvent("gptChat", "u1"),
		testEvent("gptChat", "78673c9a-6e61-4d23-892e-be594868a83b"),
		testEvent("BACKEND_sync", "u1"),
		testEvent("fixerBACKEND", "u2"),
		testEvent("fixer", ""),
	}

	kept := filter.Apply(events)
	if len(kept) != 2 {
		t.Fatalf("want 2 kept, got %d", len(kept))
	}
	if kept[0].Type != "gptChat" || kept[1].Type != "fixer" {
		t.Fatalf("unexpected survivors %+v", kept)
	}
}

func TestFilterZeroValueKeepsEverything(t *testing.T) {
	events := []domain.Event{testEvent("gptChat", "u1"), testEvent("BACKEND", "")}
	kept := Exclusions{}.Filter().Apply(events)
	if len(kept) != len(events) {
		t.Fatalf("zero-value filter should keep all events")
	}
	var nilFilter *Filter
	if !nilFilter.Keep(events[0]) {
		t.Fatalf("nil filter should keep everything")
	}
}

func TestFilterDoesNotExcludeUnattributedEvents(t *testing.T) {
	filter := Exclusions{Users: []string{"u1"}}.Filter()
	if !filter.Keep(testEvent("gptChat", "")) {
		t.Fatalf("unattributed event must not match a real excluded user")
	}
}
