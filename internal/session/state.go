// Package session holds the state of one attendance capture attempt and the
// sampler that feeds detected faces into it.
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

var (
	// ErrUnknownStudent is returned when toggling a student who is not on the roster
	ErrUnknownStudent = errors.New("student is not enrolled in this class")

	// ErrAIUnavailable is returned when automatic matching is requested but no
	// student has a registered face; attendance must be marked manually
	ErrAIUnavailable = errors.New("no registered faces, use manual marking")
)

// Options configure a session
type Options struct {
	ConfirmationThreshold int
	// StickyOverrides keeps a manually removed student absent even if
	// automatic matching confirms them again
	StickyOverrides bool
}

// State is the mutable roster state of one capture attempt.
// It is safe for concurrent use by the sampler and operator requests.
type State struct {
	mu sync.Mutex

	classID   string
	roster    []database.Student
	positions map[string]int
	gallery   *facematch.Gallery
	voter     *Voter
	present   map[string]bool
	overrides map[string]bool // last manual decision per student
	sticky    bool
	lastFaces int
}

// NewState creates the state for a class roster and its gallery
func NewState(classID string, roster []database.Student, gallery *facematch.Gallery, opts Options) *State {
	positions := make(map[string]int, len(roster))
	for i, s := range roster {
		positions[s.ID] = i
	}
	return &State{
		classID:   classID,
		roster:    roster,
		positions: positions,
		gallery:   gallery,
		voter:     NewVoter(opts.ConfirmationThreshold),
		present:   make(map[string]bool),
		overrides: make(map[string]bool),
		sticky:    opts.StickyOverrides,
	}
}

// ClassID returns the class the session belongs to
func (s *State) ClassID() string {
	return s.classID
}

// Gallery returns the session gallery
func (s *State) Gallery() *facematch.Gallery {
	return s.gallery
}

// Roster returns the class roster
func (s *State) Roster() []database.Student {
	return s.roster
}

// AIAvailable reports whether automatic matching can run
func (s *State) AIAvailable() bool {
	return !s.gallery.Empty()
}

// ApplyMatches records one vote for each matched student of a frame and marks
// confirmed students present. It returns the students that became present.
func (s *State) ApplyMatches(studentIDs []string) []string {
	return s.apply(studentIDs, false)
}

// ConfirmMatches records the votes and marks every matched student present
// without waiting for the threshold. Used for uploaded photos, where each
// image is a deliberate single shot.
func (s *State) ConfirmMatches(studentIDs []string) []string {
	return s.apply(studentIDs, true)
}

func (s *State) apply(studentIDs []string, immediate bool) []string {
	if len(studentIDs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var added []string
	for _, id := range studentIDs {
		if _, ok := s.positions[id]; !ok {
			continue
		}
		s.voter.RecordMatch(id)
		if (!immediate && !s.voter.IsConfirmed(id)) || s.present[id] {
			continue
		}
		if keep, ok := s.overrides[id]; ok && !keep && s.sticky {
			continue
		}
		s.present[id] = true
		added = append(added, id)
	}
	return added
}

// Toggle flips the student's presence regardless of votes and returns the new value.
func (s *State) Toggle(studentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.positions[studentID]; !ok {
		return false, fmt.Errorf("%s: %w", studentID, ErrUnknownStudent)
	}
	now := !s.present[studentID]
	if now {
		s.present[studentID] = true
	} else {
		delete(s.present, studentID)
	}
	s.overrides[studentID] = now
	return now, nil
}

// Reset clears votes, presence and overrides. The roster and gallery are kept.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voter.Reset()
	clear(s.present)
	clear(s.overrides)
	s.lastFaces = 0
}

// IsPresent reports whether the student is currently marked present
func (s *State) IsPresent(studentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.present[studentID]
}

// Votes returns the student's vote count
func (s *State) Votes(studentID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voter.Count(studentID)
}

// PresentIDs returns the present students in roster order
func (s *State) PresentIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.present))
	for _, st := range s.roster {
		if s.present[st.ID] {
			ids = append(ids, st.ID)
		}
	}
	return ids
}

// SetLastFaces records how many faces the latest processed frame contained
func (s *State) SetLastFaces(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFaces = n
}
