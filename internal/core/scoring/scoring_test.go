package scoring

import (
	"math"
	"math/rand"
	"testing"

	"dragoman/internal/core/modes"
)

func TestUrgency_Boundaries(t *testing.T) {
	t.Parallel()

	// exact boundary law: urgency(U) = 1, urgency(G) = 0
	if got := Urgency(10, 10, 15); got != 1 {
		t.Fatalf("urgency at U = %v, want 1", got)
	}
	if got := Urgency(15, 10, 15); got != 0 {
		t.Fatalf("urgency at G = %v, want 0", got)
	}
	if got := Urgency(12.5, 10, 15); math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("urgency midpoint = %v, want 0.5", got)
	}
	if got := Urgency(3, 10, 15); got != 1 {
		t.Fatalf("urgency below U = %v, want 1", got)
	}
	if got := Urgency(40, 10, 15); got != 0 {
		t.Fatalf("urgency above G = %v, want 0", got)
	}
}

func TestUrgency_DegenerateStep(t *testing.T) {
	t.Parallel()

	// G == U collapses to a step at U, never NaN
	if got := Urgency(10, 10, 10); got != 1 {
		t.Fatalf("urgency at step = %v, want 1", got)
	}
	if got := Urgency(10.01, 10, 10); got != 0 {
		t.Fatalf("urgency past step = %v, want 0", got)
	}
	if got := Urgency(9, 10, 8); math.IsNaN(got) {
		t.Fatal("inverted thresholds must not produce NaN")
	}
}

func TestLRS(t *testing.T) {
	t.Parallel()

	if got := LRS(0, false, 14); got != 1 {
		t.Fatalf("never assigned LRS = %v, want 1", got)
	}
	if got := LRS(7, true, 14); got != 0.5 {
		t.Fatalf("LRS(7/14) = %v, want 0.5", got)
	}
	if got := LRS(100, true, 14); got != 1 {
		t.Fatalf("LRS caps at window, got %v", got)
	}
	if got := LRS(0, true, 14); got != 0 {
		t.Fatalf("assigned today LRS = %v, want 0", got)
	}
	if got := LRS(-3, true, 14); got != 0 {
		t.Fatalf("negative idle clamps to 0, got %v", got)
	}
}

func TestRank_Deterministic(t *testing.T) {
	t.Parallel()

	w, _ := modes.LockedWeights(modes.ModeNormal)
	cands := []Candidate{
		{ID: "C", Hours: 2, DaysSinceLast: 3, EverAssigned: true, Fairness: 0.75},
		{ID: "A", Hours: 4, DaysSinceLast: 1, EverAssigned: true, Fairness: 0.5},
		{ID: "B", Hours: 0, EverAssigned: false, Fairness: 1},
	}

	first := RankAll(w, cands, 0.5, 14)
	second := RankAll(w, cands, 0.5, 14)
	for i := range first {
		if first[i].ID != second[i].ID || first[i].Adjusted != second[i].Adjusted {
			t.Fatalf("ranking not deterministic at %d: %+v vs %+v", i, first[i], second[i])
		}
	}
	if first[0].ID != "B" {
		t.Fatalf("lowest hours + never assigned should rank first, got %s", first[0].ID)
	}
}

func TestRank_TieBreakByHash(t *testing.T) {
	t.Parallel()

	w, _ := modes.LockedWeights(modes.ModeBalance)
	// identical inputs except id: the hash nudge must decide, stably
	cands := []Candidate{
		{ID: "alpha", Fairness: 1},
		{ID: "beta", Fairness: 1},
		{ID: "gamma", Fairness: 1},
	}
	ranked := RankAll(w, cands, 0, 14)

	want := "alpha"
	top := Hash32("alpha")
	for _, id := range []string{"beta", "gamma"} {
		if h := Hash32(id); h > top {
			top, want = h, id
		}
	}
	if ranked[0].ID != want {
		t.Fatalf("hash winner should rank first: got %s, want %s", ranked[0].ID, want)
	}

	// offsets must stay vanishing relative to the weighted score scale
	for _, s := range ranked {
		if d := math.Abs(s.Adjusted - s.Base); d >= 1e-3 {
			t.Fatalf("tie-break offset too large: %v", d)
		}
	}
}

func TestRank_OffsetOrder(t *testing.T) {
	t.Parallel()

	w := modes.Weights{Fair: 1, Urgency: 0, LRS: 0}
	// equal fairness; idle days dominates hours which dominates the hash
	cands := []Candidate{
		{ID: "short-idle", Fairness: 1, DaysSinceLast: 1, EverAssigned: true},
		{ID: "long-idle", Fairness: 1, DaysSinceLast: 9, EverAssigned: true},
	}
	ranked := RankAll(w, cands, 0, 14)
	if ranked[0].ID != "long-idle" {
		t.Fatalf("idle offset should win, got %s", ranked[0].ID)
	}

	cands = []Candidate{
		{ID: "heavy", Fairness: 1, DaysSinceLast: 5, EverAssigned: true, Hours: 30},
		{ID: "light", Fairness: 1, DaysSinceLast: 5, EverAssigned: true, Hours: 1},
	}
	ranked = RankAll(w, cands, 0, 14)
	if ranked[0].ID != "light" {
		t.Fatalf("hours offset should win, got %s", ranked[0].ID)
	}
}

func TestScore_PenaltyLowersBase(t *testing.T) {
	t.Parallel()

	w, _ := modes.LockedWeights(modes.ModeNormal)
	clean := Score(w, Candidate{ID: "A", Fairness: 1, EverAssigned: true, DaysSinceLast: 7}, 1, 14)
	hit := Score(w, Candidate{ID: "A", Fairness: 1, EverAssigned: true, DaysSinceLast: 7, Penalty: -0.5}, 1, 14)
	if hit.Base != clean.Base-0.5 {
		t.Fatalf("penalty should subtract exactly: %v vs %v", hit.Base, clean.Base)
	}
}

// Increasing the fairness weight must not lower the least-loaded
// interpreter's score relative to any other candidate
func TestScore_FairWeightMonotonicity(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	const maxGap = 8.0

	for trial := 0; trial < 200; trial++ {
		n := 2 + rng.Intn(5)
		cands := make([]Candidate, n)
		minHours, minIdx := math.MaxFloat64, 0
		for i := range cands {
			h := float64(rng.Intn(9))
			cands[i] = Candidate{
				ID:            string(rune('A' + i)),
				Hours:         h,
				DaysSinceLast: float64(rng.Intn(14)),
				EverAssigned:  rng.Intn(4) > 0,
			}
			if h < minHours {
				minHours, minIdx = h, i
			}
		}
		for i := range cands {
			gap := cands[i].Hours - minHours
			cands[i].Fairness = math.Max(0, math.Min(1, 1-gap/maxGap))
		}

		w1 := modes.Weights{Fair: 1 + rng.Float64(), Urgency: 1, LRS: 0.5}
		w2 := w1
		w2.Fair += 0.5 + rng.Float64()

		urg := rng.Float64()
		for i := range cands {
			if i == minIdx {
				continue
			}
			d1 := Score(w1, cands[minIdx], urg, 14).Base - Score(w1, cands[i], urg, 14).Base
			d2 := Score(w2, cands[minIdx], urg, 14).Base - Score(w2, cands[i], urg, 14).Base
			if d2 < d1-1e-9 {
				t.Fatalf("trial %d: raising wFair shrank the min-hours lead: %v -> %v", trial, d1, d2)
			}
		}
	}
}
