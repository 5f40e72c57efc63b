package models

import "time"

// Contact is a read-only reference to a person a workflow messages. Phone and
// Email may each be empty; a step can only fire when the contact has an
// address for the step's channel. Properties is a free-form bag used to
// resolve template variables not covered by the standard fields.
type Contact struct {
	ID         string            `json:"id"`
	OrgID      string            `json:"org_id" validate:"required"`
	Name       string            `json:"name"`
	Company    string            `json:"company"`
	Phone      string            `json:"phone"`
	Email      string            `json:"email"`
	Properties map[string]string `json:"properties,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}
