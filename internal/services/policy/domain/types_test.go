package domain

import (
	"testing"

	"dragoman/internal/core/drpolicy"
	"dragoman/internal/core/modes"
	perr "dragoman/internal/platform/errors"
)

func ptr[T any](v T) *T { return &v }

func TestWeights_LockedPerMode(t *testing.T) {
	t.Parallel()

	p := Default()
	p.WFair, p.WUrgency, p.WLRS = 4, 4, 4

	// non-CUSTOM modes ignore the row's own weights
	for _, m := range []modes.Mode{modes.ModeBalance, modes.ModeNormal, modes.ModeUrgent} {
		p.Mode = m
		locked, _ := modes.LockedWeights(m)
		if got := p.Weights(); got != locked {
			t.Fatalf("%s weights = %+v, want locked %+v", m, got, locked)
		}
	}

	p.Mode = modes.ModeCustom
	if got := p.Weights(); got.Fair != 4 || got.Urgency != 4 || got.LRS != 4 {
		t.Fatalf("CUSTOM weights = %+v, want the row's own", got)
	}
}

func TestApply_MergesAndValidates(t *testing.T) {
	t.Parallel()

	p := Default()
	next, err := p.Apply(Patch{
		Mode:               ptr("balance"),
		FairnessWindowDays: ptr(30),
		MaxGapHours:        ptr(12.0),
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if next.Mode != modes.ModeBalance || next.FairnessWindowDays != 30 || next.MaxGapHours != 12 {
		t.Fatalf("merged policy = %+v", next)
	}
	// untouched fields survive
	if next.DRConsecutivePenalty != p.DRConsecutivePenalty {
		t.Fatal("untouched penalty changed")
	}

	if _, err := p.Apply(Patch{Mode: ptr("TURBO")}); !perr.IsCode(err, perr.ErrorCodeValidation) {
		t.Fatalf("unknown mode error = %v, want validation", err)
	}
	if _, err := p.Apply(Patch{DRScope: ptr("NEARBY")}); !perr.IsCode(err, perr.ErrorCodeValidation) {
		t.Fatalf("unknown scope error = %v, want validation", err)
	}
}

func TestApply_WeightsLockedOutsideCustom(t *testing.T) {
	t.Parallel()

	p := Default() // NORMAL
	if _, err := p.Apply(Patch{WFair: ptr(3.0)}); !perr.IsCode(err, perr.ErrorCodeLockedParameter) {
		t.Fatalf("weight write error = %v, want locked parameter", err)
	}

	// switching to CUSTOM in the same patch unlocks them
	next, err := p.Apply(Patch{Mode: ptr("CUSTOM"), WFair: ptr(3.0), WLRS: ptr(0.1)})
	if err != nil {
		t.Fatalf("custom weight write: %v", err)
	}
	if next.WFair != 3 || next.WLRS != 0.1 {
		t.Fatalf("custom weights = %+v", next)
	}
}

func TestApply_InconsistentPenaltiesRejected(t *testing.T) {
	t.Parallel()

	p := Default()
	_, err := p.Apply(Patch{
		DRConsecutivePenalty:         ptr(-0.5),
		DRConsecutivePenaltyOverride: ptr(-1.0),
	})
	if !perr.IsCode(err, perr.ErrorCodeValidation) {
		t.Fatalf("inconsistent penalties error = %v, want validation", err)
	}

	// agreeing values pass
	next, err := p.Apply(Patch{
		DRConsecutivePenalty:         ptr(-1.0),
		DRConsecutivePenaltyOverride: ptr(-1.0),
	})
	if err != nil {
		t.Fatalf("consistent penalties: %v", err)
	}
	if next.EffectiveDRPenalty() != -1.0 {
		t.Fatalf("effective penalty = %v, want -1.0", next.EffectiveDRPenalty())
	}
}

func TestSanitised_ClampsRanges(t *testing.T) {
	t.Parallel()

	p := Default()
	p.Mode = modes.ModeCustom
	p.FairnessWindowDays = 1000
	p.MaxGapHours = -3
	p.WFair = 99
	p.WUrgency = -1
	p.DRConsecutivePenalty = -9

	out := p.Sanitised()
	if out.FairnessWindowDays != WindowDaysMax {
		t.Fatalf("window = %d, want %d", out.FairnessWindowDays, WindowDaysMax)
	}
	if out.MaxGapHours != 0 {
		t.Fatalf("maxGap = %v, want 0", out.MaxGapHours)
	}
	if out.WFair != modes.WeightMax || out.WUrgency != modes.WeightMin {
		t.Fatalf("weights = %v/%v", out.WFair, out.WUrgency)
	}
	if out.DRConsecutivePenalty != PenaltyMin {
		t.Fatalf("penalty = %v, want %v", out.DRConsecutivePenalty, PenaltyMin)
	}

	p.FairnessWindowDays = 0
	if got := p.Sanitised().FairnessWindowDays; got != WindowDaysMin {
		t.Fatalf("window = %d, want %d", got, WindowDaysMin)
	}
}

func TestEffectiveDRPenalty_OverrideWins(t *testing.T) {
	t.Parallel()

	p := Default()
	p.DRConsecutivePenalty = -0.5
	if got := p.EffectiveDRPenalty(); got != -0.5 {
		t.Fatalf("penalty = %v, want policy level", got)
	}

	p.DR = drpolicy.Policy{Scope: drpolicy.ScopeGlobal, ConsecutivePenalty: ptr(-1.5)}
	if got := p.EffectiveDRPenalty(); got != -1.5 {
		t.Fatalf("penalty = %v, want sub-policy override", got)
	}
}
