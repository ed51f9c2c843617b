package main

import "testing"

func TestParseGrid(t *testing.T) {
	names, ranges, err := parseGrid([]string{"velocity_iterations=2, 4,8", "dt=0.01"})
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "velocity_iterations" || names[1] != "dt" {
		t.Errorf("unexpected names %v", names)
	}
	if len(ranges[0]) != 3 || ranges[0][1] != 4 {
		t.Errorf("unexpected range %v", ranges[0])
	}

	if _, _, err := parseGrid([]string{"dt"}); err == nil {
		t.Error("expected error for missing values")
	}
	if _, _, err := parseGrid([]string{"dt=fast"}); err == nil {
		t.Error("expected error for bad number")
	}
}
