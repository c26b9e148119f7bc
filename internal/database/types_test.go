package database

import "testing"

func TestAttendanceRecord_Absentees(t *testing.T) {
	roster := []Student{{ID: "s1"}, {ID: "s2"}, {ID: "s3"}}
	record := AttendanceRecord{
		ClassID: "c1",
		Entries: []AttendanceEntry{
			{StudentID: "s2", Status: StatusPresent},
		},
	}

	absent := record.Absentees(roster)
	if len(absent) != 2 {
		t.Fatalf("expected 2 absentees, got %d", len(absent))
	}
	if absent[0].ID != "s1" || absent[1].ID != "s3" {
		t.Errorf("expected [s1 s3] in roster order, got %v", absent)
	}
}

func TestAttendanceRecord_IsPresent(t *testing.T) {
	record := AttendanceRecord{Entries: []AttendanceEntry{{StudentID: "s1", Status: StatusPresent}}}

	if !record.IsPresent("s1") {
		t.Error("expected s1 to be present")
	}
	if record.IsPresent("s2") {
		t.Error("expected s2 to be absent")
	}

	empty := AttendanceRecord{}
	if len(empty.Absentees([]Student{{ID: "s1"}})) != 1 {
		t.Error("expected everyone absent in an empty record")
	}
}

func TestClassLocation_Fence(t *testing.T) {
	var none *ClassLocation
	if none.Fence() != nil {
		t.Error("expected nil fence for missing location")
	}

	loc := &ClassLocation{Lat: 12.9716, Long: 77.5946, RadiusMeters: 100}
	f := loc.Fence()
	if f.Center.Lat != 12.9716 || f.Center.Long != 77.5946 || f.RadiusMeters != 100 {
		t.Errorf("unexpected fence %+v", f)
	}
}
