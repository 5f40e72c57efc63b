package services

import (
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadencehq/cadence/pkg/eventbus"
	"github.com/cadencehq/cadence/pkg/eventbus/gochannel"
	"github.com/cadencehq/cadence/pkg/events"
	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence/file"
)

func TestHistoryRecordsSentMessages(t *testing.T) {
	store := file.NewPersistence(t.TempDir())

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	recorder := NewHistory(store, bus, testLogger())
	require.NoError(t, recorder.Start(t.Context()))

	sentAt := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	event := &events.MessageSent{
		BaseEvent: events.BaseEvent{
			ID:           bus.GenerateID(),
			Type:         events.MessageSentEvent,
			Timestamp:    sentAt,
			OrgID:        "org-1",
			WorkflowID:   "wf-1",
			EnrollmentID: "enr-1",
			ContactID:    "contact-1",
		},
		Channel:           models.ChannelWhatsApp,
		StepOrder:         1,
		Body:              "Hi Ada",
		ProviderMessageID: "wamid.1",
	}
	require.NoError(t, bus.Publish(t.Context(), "enr-1", event))

	require.Eventually(t, func() bool {
		records, err := store.Conversations().ListByContact(t.Context(), "org-1", "contact-1")

		return err == nil && len(records) == 1
	}, 2*time.Second, 10*time.Millisecond)

	records, err := store.Conversations().ListByContact(t.Context(), "org-1", "contact-1")
	require.NoError(t, err)
	require.Len(t, records, 1)

	record := records[0]
	assert.Equal(t, models.DirectionOutbound, record.Direction)
	assert.Equal(t, models.ChannelWhatsApp, record.Channel)
	assert.Equal(t, "Hi Ada", record.Body)
	assert.Equal(t, "wamid.1", record.ProviderMessageID)
	assert.Equal(t, "enr-1", record.EnrollmentID)
	assert.Equal(t, sentAt, record.SentAt)
}

func TestHistoryIgnoresFailureEvents(t *testing.T) {
	store := file.NewPersistence(t.TempDir())

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	recorder := NewHistory(store, bus, testLogger())
	require.NoError(t, recorder.Start(t.Context()))

	event := &events.MessageFailed{
		BaseEvent: events.BaseEvent{
			ID:           bus.GenerateID(),
			Type:         events.MessageFailedEvent,
			Timestamp:    time.Now().UTC(),
			OrgID:        "org-1",
			ContactID:    "contact-1",
			EnrollmentID: "enr-1",
		},
		Channel:   models.ChannelEmail,
		StepOrder: 1,
		Error:     "provider 500",
		Retryable: true,
	}
	require.NoError(t, bus.Publish(t.Context(), "enr-1", event))

	// Give the consumer a moment; nothing should be recorded.
	assert.Never(t, func() bool {
		records, err := store.Conversations().ListByContact(t.Context(), "org-1", "contact-1")

		return err == nil && len(records) > 0
	}, 300*time.Millisecond, 50*time.Millisecond)
}
