// Package rules evaluates business rules against the full delivery dataset.
// Rules are pure functions of (delivery, now) so re-evaluation is idempotent:
// the same match always yields the same notification id.
package rules

import (
	"fmt"
	"time"

	"github.com/deliverydesk/alert-engine/internal/domain"
)

// Rule matches zero-or-one notification per delivery.
type Rule struct {
	Name     string
	Evaluate func(d domain.Delivery, now time.Time) (domain.Notification, bool)
}

// DefaultRules returns the built-in rule set. highValueThreshold is the value
// above which a delivery is flagged for review.
func DefaultRules(highValueThreshold float64) []Rule {
	return []Rule{
		overdueDeliveryRule(),
		missingWeightRule(),
		highValueRule(highValueThreshold),
	}
}

// overdueDeliveryRule flags non-terminal deliveries past their due date.
func overdueDeliveryRule() Rule {
	const name = "overdue_delivery"
	return Rule{
		Name: name,
		Evaluate: func(d domain.Delivery, now time.Time) (domain.Notification, bool) {
			if d.Status.IsTerminal() || d.DueAt == nil || !now.After(*d.DueAt) {
				return domain.Notification{}, false
			}
			return domain.Notification{
				ID:        domain.RuleNotificationID(name, d.ID),
				Kind:      domain.KindWarning,
				Title:     "Delivery overdue",
				Body:      fmt.Sprintf("Delivery %s is past its due date", d.Reference),
				CreatedAt: now,
				Priority:  domain.PriorityHigh,
				Category:  domain.CategoryDelivery,
				ActionRef: d.ID,
				Payload:   map[string]any{"deliveryId": d.ID, "reference": d.Reference, "dueAt": d.DueAt},
			}, true
		},
	}
}

// missingWeightRule flags completed deliveries with no recorded weight.
func missingWeightRule() Rule {
	const name = "missing_weight"
	return Rule{
		Name: name,
		Evaluate: func(d domain.Delivery, now time.Time) (domain.Notification, bool) {
			if d.Status != domain.DeliveryCompleted || d.WeightKG > 0 {
				return domain.Notification{}, false
			}
			return domain.Notification{
				ID:        domain.RuleNotificationID(name, d.ID),
				Kind:      domain.KindWarning,
				Title:     "Missing weight",
				Body:      fmt.Sprintf("Completed delivery %s has no recorded weight", d.Reference),
				CreatedAt: now,
				Priority:  domain.PriorityMedium,
				Category:  domain.CategoryOperational,
				ActionRef: d.ID,
				Payload:   map[string]any{"deliveryId": d.ID, "reference": d.Reference},
			}, true
		},
	}
}

// highValueRule flags deliveries whose declared value crosses the threshold.
func highValueRule(threshold float64) Rule {
	const name = "high_value"
	return Rule{
		Name: name,
		Evaluate: func(d domain.Delivery, now time.Time) (domain.Notification, bool) {
			if threshold <= 0 || d.Value < threshold {
				return domain.Notification{}, false
			}
			return domain.Notification{
				ID:        domain.RuleNotificationID(name, d.ID),
				Kind:      domain.KindAlert,
				Title:     "High value delivery",
				Body:      fmt.Sprintf("Delivery %s has a declared value of %.2f", d.Reference, d.Value),
				CreatedAt: now,
				Priority:  domain.PriorityHigh,
				Category:  domain.CategoryFinancial,
				ActionRef: d.ID,
				Payload:   map[string]any{"deliveryId": d.ID, "reference": d.Reference, "value": d.Value},
			}, true
		},
	}
}
