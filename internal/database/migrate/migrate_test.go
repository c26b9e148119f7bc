package migrate

import (
	"testing"
	"testing/fstest"
)

func TestPending(t *testing.T) {
	fsys := fstest.MapFS{
		"002_history.sql": {Data: []byte("SELECT 1")},
		"001_init.sql":    {Data: []byte("SELECT 1")},
		"README.md":       {Data: []byte("notes")},
		"003_extra.sql":   {Data: []byte("SELECT 1")},
	}

	tests := []struct {
		name    string
		applied map[string]bool
		want    []string
	}{
		{"nothing applied", nil, []string{"001_init.sql", "002_history.sql", "003_extra.sql"}},
		{"first applied", map[string]bool{"001_init.sql": true}, []string{"002_history.sql", "003_extra.sql"}},
		{"all applied", map[string]bool{"001_init.sql": true, "002_history.sql": true, "003_extra.sql": true}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Pending(fsys, tt.applied)
			if err != nil {
				t.Fatalf("Pending: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
