// Package push talks to the remote push broker and the local display surface.
package push

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/deliverydesk/alert-engine/internal/domain"
	"github.com/go-resty/resty/v2"
)

const defaultRegistryTimeout = 10 * time.Second

// Registry registers subscription key material with the remote push broker.
type Registry interface {
	Register(ctx context.Context, record domain.PushSubscriptionRecord) error
	Deregister(ctx context.Context, endpoint string) error
}

type registerRequest struct {
	Endpoint   string `json:"endpoint"`
	PublicKey  string `json:"publicKey"`
	AuthSecret string `json:"authSecret"`
}

// HTTPRegistry is the resty-backed push registration client.
type HTTPRegistry struct {
	client  *resty.Client
	baseURL string
}

func NewHTTPRegistry(baseURL string) (*HTTPRegistry, error) {
	client := resty.New()
	client.SetTimeout(defaultRegistryTimeout)
	client.SetRetryCount(0)

	return NewHTTPRegistryWithClient(baseURL, client)
}

func NewHTTPRegistryWithClient(baseURL string, client *resty.Client) (*HTTPRegistry, error) {
	trimmedURL := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmedURL == "" {
		return nil, fmt.Errorf("push registry url is required")
	}
	if _, err := url.ParseRequestURI(trimmedURL); err != nil {
		return nil, fmt.Errorf("invalid push registry url: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultRegistryTimeout)
	}
	client.SetRetryCount(0)

	return &HTTPRegistry{
		client:  client,
		baseURL: trimmedURL,
	}, nil
}

func (r *HTTPRegistry) Register(ctx context.Context, record domain.PushSubscriptionRecord) error {
	if r == nil || r.client == nil {
		return fmt.Errorf("registry is not initialized")
	}
	if err := record.Validate(); err != nil {
		return fmt.Errorf("invalid subscription record: %w", err)
	}

	reqBody := registerRequest{
		Endpoint:   record.Endpoint,
		PublicKey:  record.PublicKey,
		AuthSecret: record.AuthSecret,
	}

	response, err := r.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		Post(r.baseURL + "/subscriptions")
	return checkResponse(response, err)
}

func (r *HTTPRegistry) Deregister(ctx context.Context, endpoint string) error {
	if r == nil || r.client == nil {
		return fmt.Errorf("registry is not initialized")
	}
	if strings.TrimSpace(endpoint) == "" {
		return fmt.Errorf("%w: endpoint is required", domain.ErrValidation)
	}

	response, err := r.client.R().
		SetContext(ctx).
		SetQueryParam("endpoint", endpoint).
		Delete(r.baseURL + "/subscriptions")
	return checkResponse(response, err)
}

func checkResponse(response *resty.Response, err error) error {
	if err != nil {
		return &PushError{
			Message:   "push broker request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return &PushError{
			Message:   "push broker returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return nil
	}

	body := strings.TrimSpace(response.String())
	message := fmt.Sprintf("push broker returned status %d", statusCode)
	if body != "" {
		message = fmt.Sprintf("%s: %s", message, body)
	}
	return &PushError{
		StatusCode: statusCode,
		Message:    message,
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}
