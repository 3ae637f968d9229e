package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// CheckoutClient talks to the hosted checkout initiator: one POST per
// action, the response carrying the payment URL. It performs no payment
// logic itself; the checkout provider owns the money path end to end.
type CheckoutClient struct {
	BaseURL string
	Client  *http.Client
}

func NewCheckoutClient(baseURL string) *CheckoutClient {
	return &CheckoutClient{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *CheckoutClient) Configured() bool {
	return c != nil && strings.TrimSpace(c.BaseURL) != ""
}

// CheckoutResponse is the initiator's verdict. URL is the hosted payment
// page to send the user to.
type CheckoutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	URL     string `json:"url"`
}

// Invoke posts a tool call to the checkout endpoint.
func (c *CheckoutClient) Invoke(ctx context.Context, tool string, payload map[string]any) (CheckoutResponse, error) {
	var out CheckoutResponse
	if !c.Configured() {
		return out, errors.New("checkout: not configured")
	}

	body := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["tool"] = tool

	b, err := json.Marshal(body)
	if err != nil {
		return out, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.BaseURL, "/"), bytes.NewReader(b))
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(detail))
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return out, fmt.Errorf("checkout: %s", msg)
	}

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}
