package bus

import (
	"testing"

	"tickstock-core/internal/sync"
)

// The live Redis publish path is not unit-tested here, matching the
// pack's own convention for driver-backed code (see
// internal/catalog.MongoCatalog). These tests cover the pure
// envelope/summary helpers that don't touch a network client.

func TestEnvelopeIncludesServiceAndEventType(t *testing.T) {
	t.Parallel()

	msg := envelope("daily_sync_complete", map[string]any{"total_changes": 3})
	if msg["service"] != serviceName {
		t.Errorf("service = %v, want %v", msg["service"], serviceName)
	}
	if msg["event_type"] != "daily_sync_complete" {
		t.Errorf("event_type = %v, want daily_sync_complete", msg["event_type"])
	}
	if msg["total_changes"] != 3 {
		t.Errorf("total_changes = %v, want 3", msg["total_changes"])
	}
	if _, ok := msg["timestamp"]; !ok {
		t.Error("envelope missing timestamp field")
	}
}

func TestChangeSummaryEmptyReturnsEmptyMap(t *testing.T) {
	t.Parallel()

	summary := changeSummary(nil)
	if len(summary) != 0 {
		t.Errorf("expected empty summary for no changes, got %v", summary)
	}
}

func TestChangeSummaryCountsByTypeActionAndUniverse(t *testing.T) {
	t.Parallel()

	changes := []sync.Change{
		{Type: "market_cap_recalculation", Universe: "large_cap", Action: sync.ActionAdded},
		{Type: "market_cap_recalculation", Universe: "large_cap", Action: sync.ActionRemoved},
		{Type: "ipo_universe_assignment", Universe: "tech_growth", Action: sync.ActionAdded},
	}

	summary := changeSummary(changes)
	if summary["total_changes"] != 3 {
		t.Errorf("total_changes = %v, want 3", summary["total_changes"])
	}
	if summary["most_active_universe"] != "large_cap" {
		t.Errorf("most_active_universe = %v, want large_cap", summary["most_active_universe"])
	}

	byType, ok := summary["by_type"].(map[string]int)
	if !ok || byType["market_cap_recalculation"] != 2 {
		t.Errorf("by_type = %v, want market_cap_recalculation: 2", summary["by_type"])
	}
}

func TestFlattenChangesConcatenatesAcrossTasks(t *testing.T) {
	t.Parallel()

	results := []sync.TaskResult{
		{Name: "a", Changes: []sync.Change{{Universe: "u1"}}},
		{Name: "b", Changes: []sync.Change{{Universe: "u2"}, {Universe: "u3"}}},
	}
	flat := flattenChanges(results)
	if len(flat) != 3 {
		t.Errorf("flattenChanges = %d entries, want 3", len(flat))
	}
}
