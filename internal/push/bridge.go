package push

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/deliverydesk/alert-engine/internal/domain"
	"github.com/go-resty/resty/v2"
)

// WebhookPrompter runs the platform permission prompt through the local
// notification bridge.
type WebhookPrompter struct {
	client   *resty.Client
	endpoint string
}

func NewWebhookPrompter(displayBaseURL string) (*WebhookPrompter, error) {
	base := strings.TrimRight(strings.TrimSpace(displayBaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("display base url is required")
	}

	client := resty.New()
	// The prompt blocks on the user; give it room.
	client.SetTimeout(2 * time.Minute)
	client.SetRetryCount(0)

	return &WebhookPrompter{client: client, endpoint: base + "/permission"}, nil
}

type permissionResponse struct {
	Granted bool `json:"granted"`
}

func (p *WebhookPrompter) RequestPermission(ctx context.Context) (bool, error) {
	var result permissionResponse
	response, err := p.client.R().
		SetContext(ctx).
		SetResult(&result).
		Post(p.endpoint)
	if err != nil {
		return false, fmt.Errorf("permission prompt request failed: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return false, &PushError{
			StatusCode: response.StatusCode(),
			Message:    fmt.Sprintf("permission prompt returned status %d", response.StatusCode()),
			Transient:  isTransientHTTPStatus(response.StatusCode()),
		}
	}
	return result.Granted, nil
}

// WebhookExchanger performs the key exchange against the push broker.
type WebhookExchanger struct {
	client   *resty.Client
	endpoint string
}

func NewWebhookExchanger(registryBaseURL string) (*WebhookExchanger, error) {
	base := strings.TrimRight(strings.TrimSpace(registryBaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("registry base url is required")
	}

	client := resty.New()
	client.SetTimeout(defaultRegistryTimeout)
	client.SetRetryCount(0)

	return &WebhookExchanger{client: client, endpoint: base + "/keys"}, nil
}

type keyExchangeResponse struct {
	Endpoint   string `json:"endpoint"`
	PublicKey  string `json:"publicKey"`
	AuthSecret string `json:"authSecret"`
}

func (e *WebhookExchanger) Exchange(ctx context.Context) (domain.PushSubscriptionRecord, error) {
	var result keyExchangeResponse
	response, err := e.client.R().
		SetContext(ctx).
		SetResult(&result).
		Post(e.endpoint)
	if err != nil {
		return domain.PushSubscriptionRecord{}, fmt.Errorf("key exchange request failed: %w", err)
	}
	if response.StatusCode() != http.StatusOK && response.StatusCode() != http.StatusCreated {
		return domain.PushSubscriptionRecord{}, &PushError{
			StatusCode: response.StatusCode(),
			Message:    fmt.Sprintf("key exchange returned status %d", response.StatusCode()),
			Transient:  isTransientHTTPStatus(response.StatusCode()),
		}
	}

	return domain.PushSubscriptionRecord{
		Endpoint:   result.Endpoint,
		PublicKey:  result.PublicKey,
		AuthSecret: result.AuthSecret,
		CreatedAt:  time.Now().UTC(),
	}, nil
}
