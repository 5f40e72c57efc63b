package models

// WhatsApp template approval states as reported by the provider. Only
// approved templates may be sent.
const (
	TemplateStatusApproved = "approved"
	TemplateStatusPending  = "pending"
	TemplateStatusRejected = "rejected"
)

// Variable mapping sources.
const (
	MappingSourceProperty = "property"
	MappingSourceManual   = "manual"
)

// SendTime is a UTC time of day at which a step should fire.
type SendTime struct {
	Hour   int `json:"hour"   validate:"min=0,max=23"`
	Minute int `json:"minute" validate:"min=0,max=59"`
}

// WhatsAppTemplate references a provider-side message template. Approval
// status can change after the step is created, so it is checked again on
// every attempt.
type WhatsAppTemplate struct {
	Name     string `json:"name"     validate:"required"`
	Language string `json:"language"`
	Status   string `json:"status"`
	Body     string `json:"body"`
}

// EmailContent is the subject/body pair for an email step. Both parts may
// contain {{variable}} placeholders.
type EmailContent struct {
	Subject string `json:"subject" validate:"required"`
	Body    string `json:"body"    validate:"required"`
}

// VariableMapping binds one template variable to either a named contact
// property or a manual literal value.
type VariableMapping struct {
	Variable string `json:"variable" validate:"required"`
	Source   string `json:"source"   validate:"required,oneof=property manual"`
	Value    string `json:"value"`
}

// WorkflowStep is one scheduled send within a workflow. StepOrder is a dense,
// 1-based sequence; the advancement logic assumes no gaps. DelayDays is
// counted from the moment the previous step was sent (or from enrollment for
// step 1), optionally clamped to SendTime.
type WorkflowStep struct {
	ID         string            `json:"id"`
	WorkflowID string            `json:"workflow_id"`
	StepOrder  int               `json:"step_order" validate:"required,min=1"`
	DelayDays  int               `json:"delay_days" validate:"min=0"`
	SendTime   *SendTime         `json:"send_time,omitempty"`
	Channel    Channel           `json:"channel"    validate:"required,oneof=whatsapp email"`
	Template   *WhatsAppTemplate `json:"template,omitempty"`
	Email      *EmailContent     `json:"email,omitempty"`
	Mappings   []VariableMapping `json:"mappings,omitempty" validate:"dive"`
}
