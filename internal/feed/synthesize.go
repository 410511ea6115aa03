package feed

import "github.com/deliverydesk/alert-engine/internal/domain"

// Synthesize maps one change event to zero-or-one notification candidate.
//
// Inserts become "created" notifications. Updates that only touch the weight
// field are suppressed as trivial; a status transition into completed becomes
// a "completion" notification carrying the recorded weight; any other change
// becomes a generic "updated" notification. Deletes have no mapped
// notification: deliveries are archived upstream, never hard-deleted, so the
// listener only counts them.
func Synthesize(event domain.RealtimeEvent) (domain.Notification, bool) {
	switch event.Op {
	case domain.OpInsert:
		return domain.NewCreatedNotification(*event.After, event.OccurredAt), true
	case domain.OpUpdate:
		return synthesizeUpdate(event)
	default:
		return domain.Notification{}, false
	}
}

func synthesizeUpdate(event domain.RealtimeEvent) (domain.Notification, bool) {
	before, after := *event.Before, *event.After

	changed := domain.ChangedFields(before, after)
	if len(changed) == 0 {
		return domain.Notification{}, false
	}
	if len(changed) == 1 && changed[0] == domain.FieldWeightKG {
		// A lone measurement adjustment with no status change is noise.
		return domain.Notification{}, false
	}

	if before.Status != after.Status && after.Status == domain.DeliveryCompleted {
		return domain.NewCompletionNotification(after, event.OccurredAt), true
	}

	return domain.NewUpdatedNotification(after, event.OccurredAt), true
}
