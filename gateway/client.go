package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"
)

const requestTimeout = 10 * time.Second

// Client talks to the card gateway's JSON API.
type Client struct {
	apiURL   string
	storeID  int
	authKey  string
	testMode int
	http     *http.Client
}

// NewClientFromEnv picks the production endpoint, test mode if configured.
func NewClientFromEnv() (*Client, error) {
	storeID, _ := strconv.Atoi(os.Getenv("PAYGATE_STORE_ID"))
	authKey := os.Getenv("PAYGATE_AUTH_KEY")
	apiURL := os.Getenv("PAYGATE_API_URL")

	testMode := 0
	mode := os.Getenv("PAYGATE_MODE")
	if mode == "sandbox" || mode == "dev" {
		testMode = 1 // test mode even on the live endpoint
	}

	if storeID == 0 || authKey == "" || apiURL == "" {
		return nil, fmt.Errorf("gateway configuration missing")
	}
	return &Client{
		apiURL:   apiURL,
		storeID:  storeID,
		authKey:  authKey,
		testMode: testMode,
		http:     &http.Client{Timeout: requestTimeout},
	}, nil
}

type apiResponse struct {
	Intent *struct {
		Ref          string `json:"ref"`
		ClientSecret string `json:"client_secret"`
		Status       string `json:"status"`
	} `json:"intent,omitempty"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Client) call(ctx context.Context, payload map[string]interface{}) (*apiResponse, error) {
	payload["store"] = c.storeID
	payload["authkey"] = c.authKey

	jsonData, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: gateway API error (%d): %s", ErrUnavailable, resp.StatusCode, string(body))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway API error (%d): %s", resp.StatusCode, string(body))
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse gateway response: %v", err)
	}
	if apiResp.Error != nil {
		return nil, fmt.Errorf("gateway error: %s", apiResp.Error.Message)
	}
	return &apiResp, nil
}

// CreateIntent requests a new payment intent. The caller supplies the
// idempotency key, one per attempt: a repeated create with the same key
// returns the same intent instead of a duplicate charge.
func (c *Client) CreateIntent(ctx context.Context, orderRef string, amountCents int64, currency, idempotencyKey string) (*Intent, error) {
	resp, err := c.call(ctx, map[string]interface{}{
		"method": "create",
		"order": map[string]interface{}{
			"ref":      orderRef,
			"test":     c.testMode,
			"amount":   amountCents,
			"currency": currency,
		},
		"idempotency_key": idempotencyKey,
	})
	if err != nil {
		return nil, err
	}
	if resp.Intent == nil || resp.Intent.Ref == "" {
		return nil, fmt.Errorf("gateway returned empty intent")
	}
	return &Intent{Ref: resp.Intent.Ref, ClientSecret: resp.Intent.ClientSecret}, nil
}

func (c *Client) GetIntentStatus(ctx context.Context, intentRef string) (IntentStatus, error) {
	resp, err := c.call(ctx, map[string]interface{}{
		"method": "status",
		"intent": map[string]string{"ref": intentRef},
	})
	if err != nil {
		return "", err
	}
	if resp.Intent == nil || resp.Intent.Status == "" {
		return "", fmt.Errorf("gateway returned empty intent status")
	}
	return IntentStatus(resp.Intent.Status), nil
}

func (c *Client) CancelIntent(ctx context.Context, intentRef string) error {
	_, err := c.call(ctx, map[string]interface{}{
		"method": "cancel",
		"intent": map[string]string{"ref": intentRef},
	})
	return err
}
