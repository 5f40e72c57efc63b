package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cadencehq/cadence/pkg/models"
)

func TestFireTimeDelayOnly(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	step := &models.WorkflowStep{StepOrder: 2, DelayDays: 3}

	assert.Equal(t, now.AddDate(0, 0, 3), FireTime(step, now))
}

func TestFireTimeZeroDelayNoSendTime(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	step := &models.WorkflowStep{StepOrder: 1, DelayDays: 0}

	assert.Equal(t, now, FireTime(step, now))
}

func TestFireTimeClampsToSendTime(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	step := &models.WorkflowStep{
		StepOrder: 2,
		DelayDays: 2,
		SendTime:  &models.SendTime{Hour: 9, Minute: 0},
	}

	assert.Equal(t, time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC), FireTime(step, now))
}

func TestFireTimeZeroDelayRollsForwardWhenPassed(t *testing.T) {
	// 14:30 now, send time 09:00: today's slot already passed, fire tomorrow.
	now := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	step := &models.WorkflowStep{
		StepOrder: 1,
		DelayDays: 0,
		SendTime:  &models.SendTime{Hour: 9, Minute: 0},
	}

	assert.Equal(t, time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC), FireTime(step, now))
}

func TestFireTimeZeroDelaySendTimeStillAhead(t *testing.T) {
	now := time.Date(2026, 3, 10, 7, 15, 0, 0, time.UTC)
	step := &models.WorkflowStep{
		StepOrder: 1,
		DelayDays: 0,
		SendTime:  &models.SendTime{Hour: 9, Minute: 0},
	}

	assert.Equal(t, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), FireTime(step, now))
}

func TestFireTimeDelayedStepNeverRollsForward(t *testing.T) {
	// With a positive delay the clamped time may go backwards within the day.
	now := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	step := &models.WorkflowStep{
		StepOrder: 2,
		DelayDays: 1,
		SendTime:  &models.SendTime{Hour: 9, Minute: 0},
	}

	assert.Equal(t, time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC), FireTime(step, now))
}

func TestFireTimeNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	now := time.Date(2026, 3, 10, 2, 0, 0, 0, loc) // 21:00 on 2026-03-09 UTC
	step := &models.WorkflowStep{
		StepOrder: 1,
		DelayDays: 0,
		SendTime:  &models.SendTime{Hour: 23, Minute: 0},
	}

	got := FireTime(step, now)
	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC), got)
}
