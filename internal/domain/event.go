package domain

import (
	"fmt"
	"strings"
	"time"
)

// EventOp tags a change-feed event.
type EventOp string

const (
	OpInsert EventOp = "INSERT"
	OpUpdate EventOp = "UPDATE"
	OpDelete EventOp = "DELETE"
)

func (o EventOp) String() string { return string(o) }

func (o EventOp) IsValid() bool {
	switch o {
	case OpInsert, OpUpdate, OpDelete:
		return true
	}
	return false
}

func ParseEventOpFromString(s string) (EventOp, error) {
	op := EventOp(strings.ToUpper(strings.TrimSpace(s)))
	if !op.IsValid() {
		return "", fmt.Errorf("%w: invalid event op %q", ErrValidation, s)
	}
	return op, nil
}

// RealtimeEvent is one change-feed item. Which record pointers must be set
// depends on the operation: inserts carry After, deletes carry Before, and
// updates carry both.
type RealtimeEvent struct {
	Op         EventOp   `json:"op"`
	Before     *Delivery `json:"before,omitempty"`
	After      *Delivery `json:"after,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (e *RealtimeEvent) Validate() error {
	if !e.Op.IsValid() {
		return fmt.Errorf("%w: invalid event op %q", ErrValidation, e.Op)
	}
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("%w: occurredAt is required", ErrValidation)
	}

	switch e.Op {
	case OpInsert:
		if e.After == nil {
			return fmt.Errorf("%w: insert event requires an after record", ErrValidation)
		}
	case OpUpdate:
		if e.Before == nil || e.After == nil {
			return fmt.Errorf("%w: update event requires before and after records", ErrValidation)
		}
		if e.Before.ID != e.After.ID {
			return fmt.Errorf("%w: update event records refer to different entities", ErrValidation)
		}
	case OpDelete:
		if e.Before == nil {
			return fmt.Errorf("%w: delete event requires a before record", ErrValidation)
		}
	}

	return nil
}

// EntityID returns the id of the affected delivery.
func (e *RealtimeEvent) EntityID() string {
	if e.After != nil {
		return e.After.ID
	}
	if e.Before != nil {
		return e.Before.ID
	}
	return ""
}
