package engine

import (
	"time"

	"github.com/cadencehq/cadence/pkg/models"
)

// FireTime computes when a step should fire, counted from now. The same rule
// covers initial enrollment and step advancement: wait the step's delay in
// days, then clamp to the step's UTC time of day when one is set. A zero-delay
// step whose clamped time already passed rolls forward exactly one day so it
// never fires in the past.
func FireTime(step *models.WorkflowStep, now time.Time) time.Time {
	now = now.UTC()

	fireAt := now.AddDate(0, 0, step.DelayDays)

	if step.SendTime == nil {
		return fireAt
	}

	fireAt = time.Date(fireAt.Year(), fireAt.Month(), fireAt.Day(), step.SendTime.Hour, step.SendTime.Minute, 0, 0, time.UTC)

	if step.DelayDays == 0 && !fireAt.After(now) {
		fireAt = fireAt.AddDate(0, 0, 1)
	}

	return fireAt
}
