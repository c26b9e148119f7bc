package session

import "testing"

func TestVoter_ConfirmsAtThreshold(t *testing.T) {
	v := NewVoter(3)

	tests := []struct {
		vote          int
		wantNow       bool
		wantConfirmed bool
	}{
		{1, false, false},
		{2, false, false},
		{3, true, true},
		{4, false, true},
	}

	for _, tt := range tests {
		now := v.RecordMatch("s1")
		if now != tt.wantNow {
			t.Errorf("vote %d: RecordMatch() = %v, want %v", tt.vote, now, tt.wantNow)
		}
		if got := v.IsConfirmed("s1"); got != tt.wantConfirmed {
			t.Errorf("vote %d: IsConfirmed() = %v, want %v", tt.vote, got, tt.wantConfirmed)
		}
		if v.Count("s1") != tt.vote {
			t.Errorf("vote %d: Count() = %d", tt.vote, v.Count("s1"))
		}
	}
}

func TestVoter_ConfirmedIffCountReachesThreshold(t *testing.T) {
	for threshold := 1; threshold <= 5; threshold++ {
		v := NewVoter(threshold)
		for i := 0; i < 7; i++ {
			if v.IsConfirmed("s") != (v.Count("s") >= threshold) {
				t.Fatalf("threshold %d, count %d: IsConfirmed disagrees", threshold, v.Count("s"))
			}
			v.RecordMatch("s")
		}
	}
}

func TestVoter_DefaultAndReset(t *testing.T) {
	v := NewVoter(0)
	if v.Threshold() != 3 {
		t.Errorf("expected default threshold 3, got %d", v.Threshold())
	}

	v.RecordMatch("s1")
	v.Reset()
	if v.Count("s1") != 0 {
		t.Errorf("expected zero votes after reset, got %d", v.Count("s1"))
	}
}
