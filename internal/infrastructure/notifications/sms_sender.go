package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zatekoja/hospitalqueue/internal/domain/providers"
	apperrors "github.com/zatekoja/hospitalqueue/pkg/errors"
)

// HTTPSMSSender sends text messages through a JSON SMS gateway
type HTTPSMSSender struct {
	apiKey     string
	senderID   string
	httpClient *http.Client
	baseURL    string
}

// NewHTTPSMSSender creates a gateway sender
func NewHTTPSMSSender(baseURL, apiKey, senderID string, timeout time.Duration) (*HTTPSMSSender, error) {
	if baseURL == "" || apiKey == "" {
		return nil, fmt.Errorf("SMS_GATEWAY_URL and SMS_API_KEY must be set")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &HTTPSMSSender{
		apiKey:   apiKey,
		senderID: senderID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

var _ providers.SMSSender = (*HTTPSMSSender)(nil)

// gatewayRequest is the body posted to the gateway's messages endpoint
type gatewayRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Message string `json:"message"`
}

// gatewayResponse is the gateway's acknowledgement
type gatewayResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

// Send posts the message to the gateway
func (s *HTTPSMSSender) Send(ctx context.Context, msg providers.SMSMessage) (*providers.SMSResult, error) {
	if msg.To == "" {
		return nil, apperrors.NewValidationError("recipient phone number is required")
	}

	jsonData, err := json.Marshal(gatewayRequest{From: s.senderID, To: msg.To, Message: msg.Body})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/messages", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewExternalError("sms gateway unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewExternalError(
			fmt.Sprintf("sms gateway error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body))), nil).
			WithDetail("status", resp.StatusCode)
	}

	var ack gatewayResponse
	if err := json.Unmarshal(body, &ack); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if ack.MessageID == "" {
		return nil, apperrors.NewExternalError("no message id in gateway response", nil)
	}

	return &providers.SMSResult{MessageID: ack.MessageID, Status: ack.Status}, nil
}
