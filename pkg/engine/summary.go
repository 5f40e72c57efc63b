package engine

// OutcomeTag labels what happened to one enrollment during a run.
type OutcomeTag string

const (
	OutcomeAdvanced  OutcomeTag = "advanced"  // Sent, moved to the next step
	OutcomeCompleted OutcomeTag = "completed" // Sent, last step reached
	OutcomeRetried   OutcomeTag = "retried"   // Send failed, retry scheduled
	OutcomePaused    OutcomeTag = "paused"    // Workflow deactivated
	OutcomeFailed    OutcomeTag = "failed"    // Terminal failure
	OutcomeSkipped   OutcomeTag = "skipped"   // Superseded by a concurrent run
)

// RunStatus is the overall verdict of one run, mapped to distinct response
// codes so an external monitor can tell "nothing to do", "all succeeded",
// "some failed" and "all failed" apart.
type RunStatus string

const (
	RunStatusIdle    RunStatus = "idle"
	RunStatusSuccess RunStatus = "success"
	RunStatusPartial RunStatus = "partial"
	RunStatusFailed  RunStatus = "failed"
)

// EnrollmentResult describes one enrollment's outcome with enough detail to
// diagnose why a contact did not advance.
type EnrollmentResult struct {
	EnrollmentID string     `json:"enrollment_id"`
	ContactID    string     `json:"contact_id"`
	Outcome      OutcomeTag `json:"outcome"`
	Detail       string     `json:"detail,omitempty"`
}

// RunSummary aggregates one run. Sent counts successful dispatches, Failed
// counts terminal failures, Retried counts failed attempts with a retry
// scheduled, Skipped counts paused and superseded enrollments.
type RunSummary struct {
	Status    RunStatus          `json:"status"`
	Processed int                `json:"processed"`
	Sent      int                `json:"sent"`
	Failed    int                `json:"failed"`
	Retried   int                `json:"retried"`
	Skipped   int                `json:"skipped"`
	ElapsedMS int64              `json:"elapsed_ms"`
	Results   []EnrollmentResult `json:"results"`
}

func (s *RunSummary) add(result EnrollmentResult) {
	s.Processed++
	s.Results = append(s.Results, result)

	switch result.Outcome {
	case OutcomeAdvanced, OutcomeCompleted:
		s.Sent++
	case OutcomeRetried:
		s.Retried++
	case OutcomeFailed:
		s.Failed++
	case OutcomePaused, OutcomeSkipped:
		s.Skipped++
	}
}

func (s *RunSummary) finalize() {
	failedAttempts := s.Failed + s.Retried

	switch {
	case s.Processed == 0:
		s.Status = RunStatusIdle
	case failedAttempts == 0:
		s.Status = RunStatusSuccess
	case s.Sent == 0:
		s.Status = RunStatusFailed
	default:
		s.Status = RunStatusPartial
	}
}
