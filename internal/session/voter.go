package session

import "github.com/kozaktomas/face-attendance/internal/constants"

// Voter counts matched frames per student. Counts only grow until Reset.
// Voter is not safe for concurrent use; State serializes access.
type Voter struct {
	threshold int
	votes     map[string]int
}

// NewVoter creates a voter. A threshold below 1 uses the default.
func NewVoter(threshold int) *Voter {
	if threshold < 1 {
		threshold = constants.DefaultConfirmationThreshold
	}
	return &Voter{threshold: threshold, votes: make(map[string]int)}
}

// RecordMatch adds one vote and reports whether this vote reached the threshold.
func (v *Voter) RecordMatch(studentID string) bool {
	v.votes[studentID]++
	return v.votes[studentID] == v.threshold
}

// IsConfirmed reports whether the student has at least threshold votes
func (v *Voter) IsConfirmed(studentID string) bool {
	return v.votes[studentID] >= v.threshold
}

// Count returns the student's votes
func (v *Voter) Count(studentID string) int {
	return v.votes[studentID]
}

// Threshold returns the confirmation threshold
func (v *Voter) Threshold() int {
	return v.threshold
}

// Reset clears all votes
func (v *Voter) Reset() {
	clear(v.votes)
}
