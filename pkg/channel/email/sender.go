// Package email implements the email sender against an HTTP mail relay.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/cadencehq/cadence/pkg/channel"
	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/template"
)

// Credential config keys interpreted by this sender.
const (
	ConfigAPIKey   = "api_key"
	ConfigFrom     = "from"
	ConfigEndpoint = "endpoint"
)

type Sender struct {
	client *http.Client
	logger *slog.Logger
}

func NewSender(logger *slog.Logger) *Sender {
	return &Sender{
		client: &http.Client{Timeout: channel.SendTimeout},
		logger: logger.With("module", "email_sender"),
	}
}

func (s *Sender) Channel() models.Channel {
	return models.ChannelEmail
}

func (s *Sender) Address(contact *models.Contact) string {
	return contact.Email
}

func (s *Sender) CheckContent(step *models.WorkflowStep) error {
	if step.Email == nil {
		return errors.New("email step has no content configured")
	}

	if step.Email.Subject == "" || step.Email.Body == "" {
		return errors.New("email step is missing subject or body")
	}

	return nil
}

func (s *Sender) CheckCredentials(creds *models.ChannelCredentials) error {
	if creds == nil || creds.Config[ConfigAPIKey] == "" {
		return errors.New("email API key not configured")
	}

	if creds.Config[ConfigEndpoint] == "" {
		return errors.New("email relay endpoint not configured")
	}

	return nil
}

func (s *Sender) ContentSchema() string {
	return `{
		"type": "object",
		"required": ["email"],
		"properties": {
			"email": {
				"type": "object",
				"required": ["subject", "body"],
				"properties": {
					"subject": {"type": "string", "minLength": 1},
					"body": {"type": "string", "minLength": 1}
				}
			}
		}
	}`
}

type relayRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type relayResponse struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// Send personalizes subject and body and posts them to the configured relay.
func (s *Sender) Send(ctx context.Context, creds *models.ChannelCredentials, contact *models.Contact, step *models.WorkflowStep) (*channel.Result, error) {
	subject := template.Personalize(step.Email.Subject, contact, step.Mappings)
	body := template.Personalize(step.Email.Body, contact, step.Mappings)

	payload, err := json.Marshal(relayRequest{
		From:    creds.Config[ConfigFrom],
		To:      contact.Email,
		Subject: subject,
		Body:    body,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, creds.Config[ConfigEndpoint], bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build email request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+creds.Config[ConfigAPIKey])
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("email send failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read email relay response: %w", err)
	}

	var parsed relayResponse

	_ = json.Unmarshal(respBody, &parsed)

	if resp.StatusCode >= http.StatusMultipleChoices {
		detail := parsed.Error
		if detail == "" {
			detail = string(respBody)
		}

		return nil, fmt.Errorf("email relay returned status %d: %s", resp.StatusCode, detail)
	}

	return &channel.Result{
		ProviderMessageID: parsed.ID,
		Body:              subject + "\n\n" + body,
	}, nil
}
