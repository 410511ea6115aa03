package push

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/deliverydesk/alert-engine/internal/domain"
	"github.com/go-resty/resty/v2"
)

// Displayer renders one notification through the platform's local display
// surface. A single call is one attempt; retry policy lives in the delivery
// subsystem.
type Displayer interface {
	Display(ctx context.Context, n domain.Notification) error
}

type displayRequest struct {
	Tag                string         `json:"tag"`
	Title              string         `json:"title"`
	Body               string         `json:"body"`
	Kind               string         `json:"kind"`
	RequireInteraction bool           `json:"requireInteraction"`
	Sound              bool           `json:"sound"`
	Vibration          bool           `json:"vibration"`
	ActionRef          string         `json:"actionRef,omitempty"`
	Payload            map[string]any `json:"payload,omitempty"`
}

// DisplayOptions carries the advanced preference flags into each display call.
type DisplayOptions struct {
	Sound     bool
	Vibration bool
}

// WebhookDisplayer posts display requests to the local notification bridge.
type WebhookDisplayer struct {
	client   *resty.Client
	endpoint string
	options  func() DisplayOptions
}

func NewWebhookDisplayer(endpoint string, options func() DisplayOptions) (*WebhookDisplayer, error) {
	client := resty.New()
	client.SetTimeout(defaultRegistryTimeout)
	client.SetRetryCount(0)

	return NewWebhookDisplayerWithClient(endpoint, options, client)
}

func NewWebhookDisplayerWithClient(endpoint string, options func() DisplayOptions, client *resty.Client) (*WebhookDisplayer, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("display endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid display endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if options == nil {
		options = func() DisplayOptions { return DisplayOptions{Sound: true, Vibration: true} }
	}

	client.SetRetryCount(0)

	return &WebhookDisplayer{
		client:   client,
		endpoint: trimmedEndpoint,
		options:  options,
	}, nil
}

func (d *WebhookDisplayer) Display(ctx context.Context, n domain.Notification) error {
	if d == nil || d.client == nil {
		return fmt.Errorf("displayer is not initialized")
	}
	if err := n.Validate(); err != nil {
		return fmt.Errorf("invalid notification: %w", err)
	}

	opts := d.options()
	reqBody := displayRequest{
		Tag:                n.GroupTag(),
		Title:              n.Title,
		Body:               n.Body,
		Kind:               strings.ToLower(n.Kind.String()),
		RequireInteraction: n.RequireInteraction,
		Sound:              opts.Sound,
		Vibration:          opts.Vibration,
		ActionRef:          n.ActionRef,
		Payload:            n.Payload,
	}

	response, err := d.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		Post(d.endpoint)
	if err != nil {
		return &PushError{
			Message:   "display request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return nil
	}

	return &PushError{
		StatusCode: statusCode,
		Message:    fmt.Sprintf("display surface returned status %d", statusCode),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}
