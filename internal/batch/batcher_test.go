package batch

import (
	"strings"
	"testing"
	"time"

	"github.com/deliverydesk/alert-engine/internal/domain"
)

func candidate(id string, category domain.Category, priority domain.Priority) domain.Notification {
	return domain.Notification{
		ID:       id,
		Kind:     domain.KindInfo,
		Title:    "t-" + id,
		Category: category,
		Priority: priority,
	}
}

func TestCollapseSingletonPassthrough(t *testing.T) {
	t.Parallel()

	in := []domain.Notification{candidate("a", domain.CategoryDelivery, domain.PriorityLow)}
	out := Collapse(in, time.Now())

	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if out[0].ID != "a" || out[0].Title != "t-a" {
		t.Fatalf("singleton must pass through unchanged, got %+v", out[0])
	}
}

func TestCollapseGroupsSameCategoryPriority(t *testing.T) {
	t.Parallel()

	in := []domain.Notification{
		candidate("a", domain.CategoryDelivery, domain.PriorityHigh),
		candidate("b", domain.CategoryDelivery, domain.PriorityHigh),
		candidate("c", domain.CategoryDelivery, domain.PriorityHigh),
	}
	out := Collapse(in, time.Unix(1_700_000_000, 0))

	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}

	summary := out[0]
	if summary.Title != "3 delivery updates" {
		t.Fatalf("title = %q, want %q", summary.Title, "3 delivery updates")
	}
	if !summary.RequireInteraction {
		t.Fatal("high priority summary must require interaction")
	}
	if !strings.HasPrefix(summary.Tag, "batch:") {
		t.Fatalf("tag = %q, want batch: prefix", summary.Tag)
	}

	items, ok := summary.Payload["items"].([]domain.Notification)
	if !ok {
		t.Fatalf("payload items has type %T, want []domain.Notification", summary.Payload["items"])
	}
	if len(items) != 3 {
		t.Fatalf("payload retains %d items, want 3", len(items))
	}
	for i, id := range []string{"a", "b", "c"} {
		if items[i].ID != id {
			t.Fatalf("items[%d].ID = %q, want %q", i, items[i].ID, id)
		}
	}
}

func TestCollapseKeepsDistinctGroupsApart(t *testing.T) {
	t.Parallel()

	in := []domain.Notification{
		candidate("a", domain.CategoryDelivery, domain.PriorityLow),
		candidate("b", domain.CategoryFinancial, domain.PriorityLow),
		candidate("c", domain.CategoryDelivery, domain.PriorityLow),
		candidate("d", domain.CategoryDelivery, domain.PriorityCritical),
	}
	out := Collapse(in, time.Now())

	if len(out) != 3 {
		t.Fatalf("len(out) = %d, want 3", len(out))
	}

	// First group (delivery/low) summarizes a and c at position 0.
	if out[0].Payload == nil {
		t.Fatal("delivery/low group should be summarized")
	}
	if count := out[0].Payload["count"].(int); count != 2 {
		t.Fatalf("summary count = %d, want 2", count)
	}
	// Singletons pass through.
	if out[1].ID != "b" {
		t.Fatalf("out[1].ID = %q, want b", out[1].ID)
	}
	if out[2].ID != "d" {
		t.Fatalf("out[2].ID = %q, want d", out[2].ID)
	}
	if out[2].RequireInteraction {
		t.Fatal("passthrough candidate keeps its own interaction flag")
	}
}

func TestCollapseLowPrioritySummaryDoesNotRequireInteraction(t *testing.T) {
	t.Parallel()

	in := []domain.Notification{
		candidate("a", domain.CategorySystem, domain.PriorityLow),
		candidate("b", domain.CategorySystem, domain.PriorityLow),
	}
	out := Collapse(in, time.Now())

	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if out[0].RequireInteraction {
		t.Fatal("low priority summary must not require interaction")
	}
}
