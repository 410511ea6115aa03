// Package batch collapses bursts of similar candidates into one summary
// notification per (category, priority) pair. This is the engine's
// backpressure mechanism against storms of simultaneous state changes.
package batch

import (
	"fmt"
	"strings"
	"time"

	"github.com/deliverydesk/alert-engine/internal/domain"
	"github.com/google/uuid"
)

type groupKey struct {
	category domain.Category
	priority domain.Priority
}

// Collapse groups one delivery cycle's candidates by (category, priority).
// Singleton groups pass through unchanged; larger groups become one synthetic
// summary whose payload retains the originals. Input order is preserved for
// passthrough candidates and group summaries appear at the position of their
// first member.
func Collapse(candidates []domain.Notification, now time.Time) []domain.Notification {
	if len(candidates) <= 1 {
		return candidates
	}

	groups := make(map[groupKey][]domain.Notification, len(candidates))
	order := make([]groupKey, 0, len(candidates))
	for _, c := range candidates {
		key := groupKey{category: c.Category, priority: c.Priority}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], c)
	}

	out := make([]domain.Notification, 0, len(order))
	for _, key := range order {
		members := groups[key]
		if len(members) == 1 {
			out = append(out, members[0])
			continue
		}
		out = append(out, summarize(key, members, now))
	}
	return out
}

func summarize(key groupKey, members []domain.Notification, now time.Time) domain.Notification {
	tag := "batch:" + uuid.NewString()
	items := make([]domain.Notification, len(members))
	copy(items, members)

	return domain.Notification{
		ID:                 tag,
		Kind:               domain.KindInfo,
		Title:              fmt.Sprintf("%d %s updates", len(members), strings.ToLower(key.category.String())),
		Body:               summaryBody(key.category, members),
		CreatedAt:          now,
		Priority:           key.priority,
		Category:           key.category,
		Tag:                tag,
		RequireInteraction: key.priority == domain.PriorityHigh || key.priority == domain.PriorityCritical,
		Payload: map[string]any{
			"count": len(members),
			"items": items,
		},
	}
}

func summaryBody(category domain.Category, members []domain.Notification) string {
	return fmt.Sprintf("You have %d new %s notifications", len(members), strings.ToLower(category.String()))
}
