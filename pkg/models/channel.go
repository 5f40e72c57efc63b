package models

import "time"

// Channel identifies a messaging transport. The set is closed: every channel
// has its own content shape, address field and credential layout, and the
// engine dispatches to exactly one sender per channel.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelEmail    Channel = "email"
)

// Valid reports whether c is one of the known channels.
func (c Channel) Valid() bool {
	switch c {
	case ChannelWhatsApp, ChannelEmail:
		return true
	default:
		return false
	}
}

// ChannelCredentials holds organization-scoped credentials for one channel.
// Config is opaque to everything except the channel's own sender.
type ChannelCredentials struct {
	OrgID     string            `json:"org_id"  validate:"required"`
	Channel   Channel           `json:"channel" validate:"required,oneof=whatsapp email"`
	Config    map[string]string `json:"config"`
	UpdatedAt time.Time         `json:"updated_at"`
}
