// Package whatsapp implements the WhatsApp Business Cloud API sender.
package whatsapp

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

const defaultBaseURL = "https://graph.facebook.com/v19.0"

// Credential config keys interpreted by this sender.
const (
	ConfigAccessToken   = "access_token"
	ConfigPhoneNumberID = "phone_number_id"
	ConfigBaseURL       = "base_url"
)

type Sender struct {
	client *http.Client
	logger *slog.Logger
}

func NewSender(logger *slog.Logger) *Sender {
	return &Sender{
		client: &http.Client{Timeout: channel.SendTimeout},
		logger: logger.With("module", "whatsapp_sender"),
	}
}

func (s *Sender) Channel() models.Channel {
	return models.ChannelWhatsApp
}

func (s *Sender) Address(contact *models.Contact) string {
	return contact.Phone
}

// CheckContent requires a named, approved template. An unapproved template is
// unrecoverable without human intervention, so it is checked before any
// retryable work.
func (s *Sender) CheckContent(step *models.WorkflowStep) error {
	if step.Template == nil || step.Template.Name == "" {
		return errors.New("whatsapp step has no template configured")
	}

	if step.Template.Status != models.TemplateStatusApproved {
		return fmt.Errorf("whatsapp template %q is not approved (status %q)", step.Template.Name, step.Template.Status)
	}

	return nil
}

func (s *Sender) CheckCredentials(creds *models.ChannelCredentials) error {
	if creds == nil || creds.Config[ConfigAccessToken] == "" {
		return errors.New("whatsapp access token not configured")
	}

	if creds.Config[ConfigPhoneNumberID] == "" {
		return errors.New("whatsapp phone number ID not configured")
	}

	return nil
}

func (s *Sender) ContentSchema() string {
	return `{
		"type": "object",
		"required": ["template"],
		"properties": {
			"template": {
				"type": "object",
				"required": ["name"],
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"language": {"type": "string"},
					"status": {"type": "string"},
					"body": {"type": "string"}
				}
			}
		}
	}`
}

type templatePayload struct {
	Name       string              `json:"name"`
	Language   map[string]string   `json:"language"`
	Components []templateComponent `json:"components,omitempty"`
}

type templateComponent struct {
	Type       string              `json:"type"`
	Parameters []templateParameter `json:"parameters"`
}

type templateParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type sendRequest struct {
	MessagingProduct string          `json:"messaging_product"`
	To               string          `json:"to"`
	Type             string          `json:"type"`
	Template         templatePayload `json:"template"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Send delivers the approved template with body parameters resolved from the
// contact, in placeholder source order.
func (s *Sender) Send(ctx context.Context, creds *models.ChannelCredentials, contact *models.Contact, step *models.WorkflowStep) (*channel.Result, error) {
	language := step.Template.Language
	if language == "" {
		language = "en"
	}

	payload := templatePayload{
		Name:     step.Template.Name,
		Language: map[string]string{"code": language},
	}

	resolutions := template.Resolve(step.Template.Body, contact, step.Mappings)
	if len(resolutions) > 0 {
		parameters := make([]templateParameter, 0, len(resolutions))
		for _, resolution := range resolutions {
			parameters = append(parameters, templateParameter{Type: "text", Text: resolution.Value})
		}

		payload.Components = []templateComponent{{Type: "body", Parameters: parameters}}
	}

	body, err := json.Marshal(sendRequest{
		MessagingProduct: "whatsapp",
		To:               contact.Phone,
		Type:             "template",
		Template:         payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal whatsapp request: %w", err)
	}

	baseURL := creds.Config[ConfigBaseURL]
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	url := fmt.Sprintf("%s/%s/messages", baseURL, creds.Config[ConfigPhoneNumberID])

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build whatsapp request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+creds.Config[ConfigAccessToken])
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whatsapp send failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read whatsapp response: %w", err)
	}

	var parsed sendResponse

	err = json.Unmarshal(respBody, &parsed)
	if err != nil && resp.StatusCode < http.StatusMultipleChoices {
		return nil, fmt.Errorf("failed to decode whatsapp response: %w", err)
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		detail := parsed.Error.Message
		if detail == "" {
			detail = string(respBody)
		}

		return nil, fmt.Errorf("whatsapp API returned status %d: %s", resp.StatusCode, detail)
	}

	result := &channel.Result{
		Body: template.Personalize(step.Template.Body, contact, step.Mappings),
	}

	if len(parsed.Messages) > 0 {
		result.ProviderMessageID = parsed.Messages[0].ID
	}

	return result, nil
}
