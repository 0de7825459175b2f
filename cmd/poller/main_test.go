package main

import (
	"slices"
	"testing"

	"github.com/kabina/kabinaview/internal/core/domain"
)

func TestFingerprints_PerRoute(t *testing.T) {
	legs := []domain.LegRecord{
		{ID: 1, RouteID: 10, Place: 0, FromStand: 1, ToStand: 2},
		{ID: 2, RouteID: 10, Place: 1, FromStand: 2, ToStand: 3},
		{ID: 3, RouteID: 20, Place: 0, FromStand: 3, ToStand: 1},
	}
	fp := fingerprints(legs)
	if len(fp) != 2 {
		t.Fatalf("expected 2 routes, got %d", len(fp))
	}

	legs[1].Status = 5
	changed := fingerprints(legs)
	if changed[10] == fp[10] {
		t.Error("status change must alter the route fingerprint")
	}
	if changed[20] != fp[20] {
		t.Error("untouched route must keep its fingerprint")
	}
}

func TestDiff(t *testing.T) {
	before := map[int64]uint64{10: 1, 20: 2, 30: 3}
	after := map[int64]uint64{10: 1, 20: 9, 40: 4}

	c := diff(before, after)
	slices.Sort(c.Changed)
	if !slices.Equal(c.Changed, []int64{20, 40}) {
		t.Errorf("changed = %v", c.Changed)
	}
	if !slices.Equal(c.Removed, []int64{30}) {
		t.Errorf("removed = %v", c.Removed)
	}

	if c := diff(after, after); len(c.Changed)+len(c.Removed) != 0 {
		t.Errorf("expected no change, got %+v", c)
	}
}
