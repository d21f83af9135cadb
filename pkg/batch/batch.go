// Package batch carries the result shape shared by all scheduled runs.
package batch

import "fmt"

// RunSummary reports the outcome of one batch run. Failures carry enough
// context to retry the item manually.
type RunSummary struct {
	Processed int      `json:"processed"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Reasons   []string `json:"reasons,omitempty"`
}

func (s *RunSummary) AddSuccess() {
	s.Processed++
	s.Succeeded++
}

func (s *RunSummary) AddSkip() {
	s.Processed++
}

func (s *RunSummary) AddFailure(key string, err error) {
	s.Processed++
	s.Failed++
	s.Reasons = append(s.Reasons, fmt.Sprintf("%s: %v", key, err))
}

func (s *RunSummary) Merge(other RunSummary) {
	s.Processed += other.Processed
	s.Succeeded += other.Succeeded
	s.Failed += other.Failed
	s.Reasons = append(s.Reasons, other.Reasons...)
}
