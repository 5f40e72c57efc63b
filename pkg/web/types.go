// Package web provides HTTP request and response types for the sequence API.
package web

import "github.com/cadencehq/cadence/pkg/models"

// CreateWorkflowRequest represents the request body for creating a new workflow.
type CreateWorkflowRequest struct {
	OrgID       string        `json:"org_id"      validate:"required"`
	Name        string        `json:"name"        validate:"required,min=3"`
	Description string        `json:"description"`
	Steps       []StepRequest `json:"steps"       validate:"required,min=1,dive"`
}

// StepRequest represents one step in a workflow creation request.
type StepRequest struct {
	StepOrder int                      `json:"step_order" validate:"required,min=1"`
	DelayDays int                      `json:"delay_days" validate:"min=0"`
	SendTime  *models.SendTime         `json:"send_time,omitempty"`
	Channel   models.Channel           `json:"channel"    validate:"required,oneof=whatsapp email"`
	Template  *models.WhatsAppTemplate `json:"template,omitempty"`
	Email     *models.EmailContent     `json:"email,omitempty"`
	Mappings  []models.VariableMapping `json:"mappings,omitempty" validate:"dive"`
}

// ToModel converts the request step into the domain model.
func (r StepRequest) ToModel() *models.WorkflowStep {
	return &models.WorkflowStep{
		StepOrder: r.StepOrder,
		DelayDays: r.DelayDays,
		SendTime:  r.SendTime,
		Channel:   r.Channel,
		Template:  r.Template,
		Email:     r.Email,
		Mappings:  r.Mappings,
	}
}

// CreateEnrollmentRequest represents the request body for enrolling a contact.
type CreateEnrollmentRequest struct {
	OrgID      string `json:"org_id"      validate:"required"`
	WorkflowID string `json:"workflow_id" validate:"required"`
	ContactID  string `json:"contact_id"  validate:"required"`
}

// DeactivateWorkflowResponse reports how many enrollments were paused along
// with the workflow.
type DeactivateWorkflowResponse struct {
	ID                string `json:"id"`
	Active            bool   `json:"active"`
	PausedEnrollments int    `json:"paused_enrollments"`
}
