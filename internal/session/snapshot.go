package session

import "github.com/kozaktomas/face-attendance/internal/facematch"

// StudentStatus is a student's state in a snapshot
type StudentStatus struct {
	ID             string `json:"id"`
	DisplayName    string `json:"display_name"`
	RollNo         string `json:"roll_no,omitempty"`
	FaceRegistered bool   `json:"face_registered"`
	Votes          int    `json:"votes"`
	Present        bool   `json:"present"`
	Override       *bool  `json:"override,omitempty"`
}

// Snapshot is a point-in-time copy of the session state
type Snapshot struct {
	ClassID               string          `json:"class_id"`
	AIAvailable           bool            `json:"ai_available"`
	ConfirmationThreshold int             `json:"confirmation_threshold"`
	PresentCount          int             `json:"present_count"`
	TotalCount            int             `json:"total_count"`
	LastFaces             int             `json:"last_faces"`
	Students              []StudentStatus `json:"students"`
}

// Snapshot copies the current state
func (s *State) Snapshot() Snapshot {
	return s.snapshot("")
}

// Search returns the snapshot restricted to students whose name or roll number
// matches the query
func (s *State) Search(query string) Snapshot {
	return s.snapshot(query)
}

func (s *State) snapshot(query string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ClassID:               s.classID,
		AIAvailable:           !s.gallery.Empty(),
		ConfirmationThreshold: s.voter.Threshold(),
		PresentCount:          len(s.present),
		TotalCount:            len(s.roster),
		LastFaces:             s.lastFaces,
		Students:              make([]StudentStatus, 0, len(s.roster)),
	}
	for _, st := range s.roster {
		if query != "" && !facematch.MatchesQuery(st.DisplayName, st.RollNo, query) {
			continue
		}
		status := StudentStatus{
			ID:             st.ID,
			DisplayName:    st.DisplayName,
			RollNo:         st.RollNo,
			FaceRegistered: st.FaceRegistered,
			Votes:          s.voter.Count(st.ID),
			Present:        s.present[st.ID],
		}
		if v, ok := s.overrides[st.ID]; ok {
			status.Override = &v
		}
		snap.Students = append(snap.Students, status)
	}
	return snap
}
