package domain

// ProgressStatus is the terminal flag of a progress indicator.
type ProgressStatus string

const (
	ProgressNone    ProgressStatus = "none"
	ProgressSuccess ProgressStatus = "success"
	ProgressFailure ProgressStatus = "failure"
)

// ProgressState is a snapshot of a simulated progress indicator.
//
// Percentage stays in [0, 99] while Status is ProgressNone and is exactly 100
// iff Status is ProgressSuccess.
type ProgressState struct {
	Percentage float64        `json:"percentage"`
	Status     ProgressStatus `json:"status"`
	Visible    bool           `json:"visible"`
}

// Fraction returns the percentage scaled to [0, 1].
func (s ProgressState) Fraction() float64 {
	return s.Percentage / 100
}

// Done reports whether the indicator reached a terminal status.
func (s ProgressState) Done() bool {
	return s.Status == ProgressSuccess || s.Status == ProgressFailure
}
