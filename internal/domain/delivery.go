package domain

import (
	"fmt"
	"strings"
	"time"
)

// DeliveryStatus represents the lifecycle state of a tracked delivery.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "PENDING"
	DeliveryInTransit DeliveryStatus = "IN_TRANSIT"
	DeliveryCompleted DeliveryStatus = "COMPLETED"
	DeliveryCancelled DeliveryStatus = "CANCELLED"
)

func (s DeliveryStatus) String() string { return string(s) }

func (s DeliveryStatus) IsValid() bool {
	switch s {
	case DeliveryPending, DeliveryInTransit, DeliveryCompleted, DeliveryCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further business transitions are expected.
func (s DeliveryStatus) IsTerminal() bool {
	return s == DeliveryCompleted || s == DeliveryCancelled
}

func ParseDeliveryStatusFromString(s string) (DeliveryStatus, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	st := DeliveryStatus(normalized)
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid delivery status %q", ErrValidation, s)
	}
	return st, nil
}

// Delivery is the tracked entity both synthesis paths observe.
type Delivery struct {
	ID        string         `json:"id"`
	Reference string         `json:"reference"`
	Status    DeliveryStatus `json:"status"`
	WeightKG  float64        `json:"weightKg"`
	Value     float64        `json:"value"`
	DueAt     *time.Time     `json:"dueAt,omitempty"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Delivery field names used when diffing update events.
const (
	FieldReference = "reference"
	FieldStatus    = "status"
	FieldWeightKG  = "weightKg"
	FieldValue     = "value"
	FieldDueAt     = "dueAt"
)

// ChangedFields returns the names of fields that differ between two versions
// of a delivery. UpdatedAt is bookkeeping and never counted as a change.
func ChangedFields(before, after Delivery) []string {
	var changed []string
	if before.Reference != after.Reference {
		changed = append(changed, FieldReference)
	}
	if before.Status != after.Status {
		changed = append(changed, FieldStatus)
	}
	if before.WeightKG != after.WeightKG {
		changed = append(changed, FieldWeightKG)
	}
	if before.Value != after.Value {
		changed = append(changed, FieldValue)
	}
	if !equalTimePtr(before.DueAt, after.DueAt) {
		changed = append(changed, FieldDueAt)
	}
	return changed
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
