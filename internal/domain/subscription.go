package domain

import (
	"fmt"
	"strings"
	"time"
)

// PushSubscriptionRecord is the key material shared with the remote push
// broker. Uniquely keyed by endpoint.
type PushSubscriptionRecord struct {
	Endpoint   string    `json:"endpoint"`
	PublicKey  string    `json:"publicKey"`
	AuthSecret string    `json:"authSecret"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (r *PushSubscriptionRecord) Validate() error {
	if strings.TrimSpace(r.Endpoint) == "" {
		return fmt.Errorf("%w: subscription endpoint is required", ErrValidation)
	}
	if strings.TrimSpace(r.PublicKey) == "" {
		return fmt.Errorf("%w: subscription public key is required", ErrValidation)
	}
	if strings.TrimSpace(r.AuthSecret) == "" {
		return fmt.Errorf("%w: subscription auth secret is required", ErrValidation)
	}
	return nil
}
