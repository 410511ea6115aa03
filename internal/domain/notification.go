package domain

import (
	"fmt"
	"strings"
	"time"
)

// Kind represents the visual treatment of a notification.
type Kind string

const (
	KindInfo    Kind = "INFO"
	KindSuccess Kind = "SUCCESS"
	KindWarning Kind = "WARNING"
	KindError   Kind = "ERROR"
	KindAlert   Kind = "ALERT"
)

func (k Kind) String() string { return string(k) }

func (k Kind) IsValid() bool {
	switch k {
	case KindInfo, KindSuccess, KindWarning, KindError, KindAlert:
		return true
	}
	return false
}

func ParseKindFromString(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("%w: invalid kind %q", ErrValidation, s)
	}
	return k, nil
}

// Priority represents the notification priority level.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

func (p Priority) String() string { return string(p) }

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

func ParsePriorityFromString(s string) (Priority, error) {
	pr := Priority(strings.ToUpper(strings.TrimSpace(s)))
	if !pr.IsValid() {
		return "", fmt.Errorf("%w: invalid priority %q", ErrValidation, s)
	}
	return pr, nil
}

// Priorities lists all valid priorities in ascending severity order.
func Priorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}
}

// Category represents the notification subject area.
type Category string

const (
	CategoryDelivery    Category = "DELIVERY"
	CategorySystem      Category = "SYSTEM"
	CategoryFinancial   Category = "FINANCIAL"
	CategoryOperational Category = "OPERATIONAL"
	CategoryMaintenance Category = "MAINTENANCE"
)

func (c Category) String() string { return string(c) }

func (c Category) IsValid() bool {
	switch c {
	case CategoryDelivery, CategorySystem, CategoryFinancial, CategoryOperational, CategoryMaintenance:
		return true
	}
	return false
}

func ParseCategoryFromString(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("%w: invalid category %q", ErrValidation, s)
	}
	return c, nil
}

// Categories lists all valid categories.
func Categories() []Category {
	return []Category{CategoryDelivery, CategorySystem, CategoryFinancial, CategoryOperational, CategoryMaintenance}
}

// Notification is a single alert candidate or delivered alert.
//
// The ID is derived deterministically from the originating rule or event so
// that independent syntheses of the same logical event collapse to one id.
// Tag is the rate-limiter/batcher grouping key; it defaults to the id but
// batched summaries carry a fresh per-batch tag.
type Notification struct {
	ID                 string
	Kind               Kind
	Title              string
	Body               string
	CreatedAt          time.Time
	Read               bool
	Priority           Priority
	Category           Category
	Tag                string
	RequireInteraction bool
	ActionRef          string
	Payload            map[string]any
}

func (n *Notification) Validate() error {
	if strings.TrimSpace(n.ID) == "" {
		return fmt.Errorf("%w: notification id is required", ErrValidation)
	}
	if strings.TrimSpace(n.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if !n.Kind.IsValid() {
		return fmt.Errorf("%w: invalid kind %q", ErrValidation, n.Kind)
	}
	if !n.Priority.IsValid() {
		return fmt.Errorf("%w: invalid priority %q", ErrValidation, n.Priority)
	}
	if !n.Category.IsValid() {
		return fmt.Errorf("%w: invalid category %q", ErrValidation, n.Category)
	}
	return nil
}

// GroupTag returns the rate-limiter/batcher key for the notification.
func (n *Notification) GroupTag() string {
	if n.Tag != "" {
		return n.Tag
	}
	return n.ID
}

// RuleNotificationID builds the id for a snapshot-rule match. Re-evaluating the
// same rule against the same entity always yields the same id.
func RuleNotificationID(ruleName, entityID string) string {
	return ruleName + ":" + entityID
}

// EventNotificationID builds the id for a status-transition event. Repeated
// identical transitions collapse to one id.
func EventNotificationID(eventType, entityID string) string {
	return eventType + ":" + entityID
}

// CreationNotificationID builds the id for a creation event. The event
// timestamp participates so that distinct creations of reused references stay
// distinct, while redelivery of the same feed event stays idempotent.
func CreationNotificationID(eventType, entityID string, occurredAt time.Time) string {
	return fmt.Sprintf("%s:%s:%d", eventType, entityID, occurredAt.UTC().Unix())
}

// NewCreatedNotification words an insert event. Both synthesis paths must use
// these constructors so the same logical event renders identically regardless
// of which path produced it.
func NewCreatedNotification(d Delivery, occurredAt time.Time) Notification {
	return Notification{
		ID:        CreationNotificationID("delivery_created", d.ID, occurredAt),
		Kind:      KindInfo,
		Title:     "New delivery",
		Body:      fmt.Sprintf("Delivery %s was created", d.Reference),
		CreatedAt: occurredAt,
		Priority:  PriorityLow,
		Category:  CategoryDelivery,
		ActionRef: d.ID,
		Payload:   map[string]any{"deliveryId": d.ID, "reference": d.Reference},
	}
}

// NewCompletionNotification words a terminal status transition, including the
// recorded weight when present.
func NewCompletionNotification(d Delivery, occurredAt time.Time) Notification {
	body := fmt.Sprintf("Delivery %s is completed", d.Reference)
	if d.WeightKG > 0 {
		body = fmt.Sprintf("Delivery %s is completed with %s kg", d.Reference, formatWeight(d.WeightKG))
	}
	return Notification{
		ID:        EventNotificationID("delivery_completed", d.ID),
		Kind:      KindSuccess,
		Title:     "Delivery completed",
		Body:      body,
		CreatedAt: occurredAt,
		Priority:  PriorityMedium,
		Category:  CategoryDelivery,
		ActionRef: d.ID,
		Payload:   map[string]any{"deliveryId": d.ID, "reference": d.Reference, "weightKg": d.WeightKG},
	}
}

// NewUpdatedNotification words a non-trivial, non-terminal update.
func NewUpdatedNotification(d Delivery, occurredAt time.Time) Notification {
	return Notification{
		ID:        EventNotificationID("delivery_updated", d.ID),
		Kind:      KindInfo,
		Title:     "Delivery updated",
		Body:      fmt.Sprintf("Delivery %s changed to %s", d.Reference, strings.ToLower(d.Status.String())),
		CreatedAt: occurredAt,
		Priority:  PriorityLow,
		Category:  CategoryDelivery,
		ActionRef: d.ID,
		Payload:   map[string]any{"deliveryId": d.ID, "reference": d.Reference, "status": d.Status.String()},
	}
}

func formatWeight(kg float64) string {
	if kg == float64(int64(kg)) {
		return fmt.Sprintf("%d", int64(kg))
	}
	return fmt.Sprintf("%.1f", kg)
}
