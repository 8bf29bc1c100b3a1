package rosterdiff

import (
	"math"
	"reflect"
	"testing"
)

func TestCompute_Delta(t *testing.T) {
	t.Parallel()

	d := Compute(Input{
		Roster:           []string{"B", "A", "D"},
		Snapshot:         []string{"A", "B", "C"},
		AssignedInWindow: map[string]bool{"A": true, "B": true},
	})

	if !reflect.DeepEqual(d.Newcomers, []string{"D"}) {
		t.Fatalf("newcomers = %v, want [D]", d.Newcomers)
	}
	if !reflect.DeepEqual(d.Departed, []string{"C"}) {
		t.Fatalf("departed = %v, want [C]", d.Departed)
	}
	if !d.Grown {
		t.Fatal("D joined; roster has grown")
	}

	// factor = clamp(1 + 1/3 * 0.5) = 1.1666...
	want := 1 + 1.0/3.0*0.5
	if math.Abs(d.Factor-want) > 1e-12 {
		t.Fatalf("factor = %v, want %v", d.Factor, want)
	}
}

func TestCompute_FactorClamps(t *testing.T) {
	t.Parallel()

	// all newcomers: 1 + 0.5 = 1.5, at the cap
	d := Compute(Input{Roster: []string{"A", "B"}, Snapshot: nil, AssignedInWindow: nil})
	if d.Factor != MaxFactor {
		t.Fatalf("factor = %v, want %v", d.Factor, MaxFactor)
	}

	// no newcomers: stays at the floor
	d = Compute(Input{
		Roster:           []string{"A"},
		Snapshot:         []string{"A"},
		AssignedInWindow: map[string]bool{"A": true},
	})
	if d.Factor != MinFactor {
		t.Fatalf("factor = %v, want %v", d.Factor, MinFactor)
	}

	// empty roster must not divide by zero
	d = Compute(Input{})
	if d.Factor != MinFactor || d.Grown {
		t.Fatalf("empty roster diff = %+v", d)
	}
}

func TestCompute_Idempotent(t *testing.T) {
	t.Parallel()

	in := Input{
		Roster:           []string{"A", "B", "C"},
		Snapshot:         []string{"A", "B", "C"},
		AssignedInWindow: map[string]bool{"A": true},
	}
	first := Compute(in)
	second := Compute(in)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("diff not idempotent: %+v vs %+v", first, second)
	}
	if first.Grown {
		t.Fatal("unchanged roster must not report growth")
	}
	if len(first.Departed) != 0 {
		t.Fatalf("departed = %v, want none", first.Departed)
	}
}

func TestGraceApplies(t *testing.T) {
	t.Parallel()

	grown := Compute(Input{
		Roster:           []string{"A", "N"},
		Snapshot:         []string{"A"},
		AssignedInWindow: map[string]bool{"A": true},
	})
	if !grown.GraceApplies("N") {
		t.Fatal("newcomer on a grown roster earns grace")
	}
	if grown.GraceApplies("A") {
		t.Fatal("assigned veteran never earns grace")
	}

	flat := Compute(Input{
		Roster:           []string{"A", "B"},
		Snapshot:         []string{"A", "B"},
		AssignedInWindow: map[string]bool{"A": true},
	})
	if flat.GraceApplies("B") {
		t.Fatal("grace requires roster growth, not just idleness")
	}
	if !flat.IsNewcomer("B") {
		t.Fatal("B is idle in the window and counts as a newcomer")
	}
}
