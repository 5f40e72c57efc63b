// Package models defines the core domain models for outbound sequence automation.
package models

import "time"

// Workflow represents a named, ordered sequence of outbound steps for one
// organization. Steps are immutable once defined; only the activation flag
// changes. Deactivating a workflow pauses its in-flight enrollments, it never
// deletes them.
type Workflow struct {
	ID          string          `json:"id"`
	OrgID       string          `json:"org_id"      validate:"required"`
	Name        string          `json:"name"        validate:"required,min=3"`
	Description string          `json:"description"`
	Active      bool            `json:"active"`
	Steps       []*WorkflowStep `json:"steps"       validate:"required,min=1,dive"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Step returns the step with the given 1-based order, or nil when no such
// step exists.
func (w *Workflow) Step(order int) *WorkflowStep {
	for _, step := range w.Steps {
		if step.StepOrder == order {
			return step
		}
	}

	return nil
}
