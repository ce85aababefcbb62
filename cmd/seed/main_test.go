package main

import (
	"strings"
	"testing"
)

func TestReadLocations(t *testing.T) {
	input := `name,latitude,longitude
Bengaluru,12.97,77.59
Nowhere,abc,10
Pole,91,0
Short,1
Sydney,-33.8688,151.2093
`
	locations, skipped, err := readLocations(strings.NewReader(input))
	if err != nil {
		t.Fatalf("readLocations() error = %v", err)
	}
	if skipped != 3 {
		t.Errorf("skipped = %d, want 3", skipped)
	}
	if len(locations) != 2 {
		t.Fatalf("readLocations() returned %d locations, want 2", len(locations))
	}
	if locations[1].Name != "Sydney" || locations[1].Longitude != 151.2093 {
		t.Errorf("locations[1] = %+v, want Sydney", locations[1])
	}
}

func TestReadLocations_Empty(t *testing.T) {
	locations, skipped, err := readLocations(strings.NewReader(""))
	if err != nil || len(locations) != 0 || skipped != 0 {
		t.Errorf("readLocations(\"\") = (%v, %d, %v), want empty", locations, skipped, err)
	}
}
