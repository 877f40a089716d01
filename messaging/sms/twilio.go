package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TwilioConfig holds the Twilio REST credentials.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// TwilioSender implements Sender against the Twilio Messages API.
type TwilioSender struct {
	config *TwilioConfig
	client *http.Client
}

type twilioResponse struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorCode    any    `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// NewTwilioSender validates the credentials and returns a sender.
func NewTwilioSender(config *TwilioConfig) (*TwilioSender, error) {
	if config == nil || config.AccountSID == "" || config.AuthToken == "" || config.FromNumber == "" {
		return nil, errors.New("invalid Twilio configuration")
	}
	return &TwilioSender{
		config: config,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (s *TwilioSender) SendCode(ctx context.Context, phoneNumber, code string) error {
	if !strings.HasPrefix(phoneNumber, "+") {
		return errors.New("phone number must include country code")
	}

	message := fmt.Sprintf("Your verification code is: %s. Valid for 5 minutes.", code)
	apiURL := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json", s.config.AccountSID)

	data := url.Values{}
	data.Set("To", phoneNumber)
	data.Set("From", s.config.FromNumber)
	data.Set("Body", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.config.AccountSID, s.config.AuthToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var twilioResp twilioResponse
	if err := json.NewDecoder(resp.Body).Decode(&twilioResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		errorMsg := fmt.Sprintf("twilio api error (status %d)", resp.StatusCode)
		if twilioResp.ErrorMessage != "" {
			errorMsg += ": " + twilioResp.ErrorMessage
		}
		return errors.New(errorMsg)
	}
	return nil
}
