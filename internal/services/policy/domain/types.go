// Package domain defines the assignment policy document, its validation
// rules, and the resolver output the engine scores with
package domain

import (
	"time"

	"dragoman/internal/core/drpolicy"
	"dragoman/internal/core/modes"

	perr "dragoman/internal/platform/errors"
)

// Bounds for the sanitised policy document
const (
	WindowDaysMin = 1
	WindowDaysMax = 365
	PenaltyMin    = -2.0
	PenaltyMax    = 0.0
)

// Policy is the single process-wide assignment policy row
type Policy struct {
	Mode                 modes.Mode      `json:"mode"`
	AutoAssignEnabled    bool            `json:"autoAssignEnabled"`
	FairnessWindowDays   int             `json:"fairnessWindowDays"`
	MaxGapHours          float64         `json:"maxGapHours"`
	MinAdvanceDays       int             `json:"minAdvanceDays"`
	CustomThresholdDays  int             `json:"customThresholdDays,omitempty"`
	WFair                float64         `json:"wFair"`
	WUrgency             float64         `json:"wUrgency"`
	WLRS                 float64         `json:"wLrs"`
	DRConsecutivePenalty float64         `json:"drConsecutivePenalty"`
	DR                   drpolicy.Policy `json:"drPolicy"`
	Generation           int64           `json:"generation"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

// Default returns the built-in policy served before any admin write
func Default() Policy {
	w, _ := modes.LockedWeights(modes.ModeNormal)
	return Policy{
		Mode:                 modes.ModeNormal,
		AutoAssignEnabled:    true,
		FairnessWindowDays:   14,
		MaxGapHours:          8,
		WFair:                w.Fair,
		WUrgency:             w.Urgency,
		WLRS:                 w.LRS,
		DRConsecutivePenalty: -0.5,
		DR: drpolicy.Policy{
			Scope:             drpolicy.ScopeGlobal,
			ForbidConsecutive: true,
		},
	}
}

// Weights returns the effective scoring weights: locked per mode, the row's
// own values only under CUSTOM
func (p Policy) Weights() modes.Weights {
	if w, ok := modes.LockedWeights(p.Mode); ok {
		return w
	}
	return modes.Weights{Fair: p.WFair, Urgency: p.WUrgency, LRS: p.WLRS}
}

// EffectiveDRPenalty is the penalty in force for consecutive DR assignments
func (p Policy) EffectiveDRPenalty() float64 {
	return p.DR.EffectivePenalty(p.DRConsecutivePenalty)
}

// Patch is a partial policy write; nil fields keep their current value
type Patch struct {
	Mode                         *string  `json:"mode,omitempty"`
	AutoAssignEnabled            *bool    `json:"autoAssignEnabled,omitempty"`
	FairnessWindowDays           *int     `json:"fairnessWindowDays,omitempty"`
	MaxGapHours                  *float64 `json:"maxGapHours,omitempty"`
	MinAdvanceDays               *int     `json:"minAdvanceDays,omitempty"`
	CustomThresholdDays          *int     `json:"customThresholdDays,omitempty"`
	WFair                        *float64 `json:"wFair,omitempty"`
	WUrgency                     *float64 `json:"wUrgency,omitempty"`
	WLRS                         *float64 `json:"wLrs,omitempty"`
	DRConsecutivePenalty         *float64 `json:"drConsecutivePenalty,omitempty"`
	DRScope                      *string  `json:"drScope,omitempty"`
	DRForbidConsecutive          *bool    `json:"drForbidConsecutive,omitempty"`
	DRConsecutivePenaltyOverride *float64 `json:"drConsecutivePenaltyOverride,omitempty"`
	DRIncludePending             *bool    `json:"drIncludePending,omitempty"`
}

// Apply validates the patch against the current policy, merges it, and
// returns the sanitised result. Weight writes against a non-CUSTOM mode are
// a locked-parameter error; a DR penalty override disagreeing with the
// policy-level penalty is a validation error
func (p Policy) Apply(patch Patch) (Policy, error) {
	next := p

	if patch.Mode != nil {
		m, err := modes.ParseMode(*patch.Mode)
		if err != nil {
			return Policy{}, perr.Newf(perr.ErrorCodeValidation, "policy: %v", err)
		}
		next.Mode = m
	}
	if patch.AutoAssignEnabled != nil {
		next.AutoAssignEnabled = *patch.AutoAssignEnabled
	}
	if patch.FairnessWindowDays != nil {
		next.FairnessWindowDays = *patch.FairnessWindowDays
	}
	if patch.MaxGapHours != nil {
		next.MaxGapHours = *patch.MaxGapHours
	}
	if patch.MinAdvanceDays != nil {
		next.MinAdvanceDays = *patch.MinAdvanceDays
	}
	if patch.CustomThresholdDays != nil {
		next.CustomThresholdDays = *patch.CustomThresholdDays
	}

	if patch.WFair != nil || patch.WUrgency != nil || patch.WLRS != nil {
		if next.Mode != modes.ModeCustom {
			return Policy{}, perr.LockedParamf("policy: weights are locked in %s mode", next.Mode)
		}
		if patch.WFair != nil {
			next.WFair = *patch.WFair
		}
		if patch.WUrgency != nil {
			next.WUrgency = *patch.WUrgency
		}
		if patch.WLRS != nil {
			next.WLRS = *patch.WLRS
		}
	}

	if patch.DRConsecutivePenalty != nil {
		next.DRConsecutivePenalty = *patch.DRConsecutivePenalty
	}
	if patch.DRScope != nil {
		sc, err := drpolicy.ParseScope(*patch.DRScope)
		if err != nil {
			return Policy{}, perr.Newf(perr.ErrorCodeValidation, "policy: %v", err)
		}
		next.DR.Scope = sc
	}
	if patch.DRForbidConsecutive != nil {
		next.DR.ForbidConsecutive = *patch.DRForbidConsecutive
	}
	if patch.DRConsecutivePenaltyOverride != nil {
		v := *patch.DRConsecutivePenaltyOverride
		next.DR.ConsecutivePenalty = &v
	}
	if patch.DRIncludePending != nil {
		next.DR.IncludePendingInGlobal = *patch.DRIncludePending
	}

	touchedPenalty := patch.DRConsecutivePenalty != nil || patch.DRConsecutivePenaltyOverride != nil
	if touchedPenalty && next.DR.ConsecutivePenalty != nil &&
		*next.DR.ConsecutivePenalty != next.DRConsecutivePenalty {
		return Policy{}, perr.Newf(perr.ErrorCodeValidation,
			"policy: drConsecutivePenalty and drPolicy.consecutivePenalty set inconsistently (%.2f vs %.2f)",
			next.DRConsecutivePenalty, *next.DR.ConsecutivePenalty)
	}

	return next.Sanitised(), nil
}

// Sanitised clamps every numeric field into its valid range
func (p Policy) Sanitised() Policy {
	out := p
	out.FairnessWindowDays = clampInt(p.FairnessWindowDays, WindowDaysMin, WindowDaysMax)
	if out.MaxGapHours < 0 {
		out.MaxGapHours = 0
	}
	if out.MinAdvanceDays < 0 {
		out.MinAdvanceDays = 0
	}
	if out.CustomThresholdDays < 0 {
		out.CustomThresholdDays = 0
	}
	out.WFair = clampFloat(p.WFair, modes.WeightMin, modes.WeightMax)
	out.WUrgency = clampFloat(p.WUrgency, modes.WeightMin, modes.WeightMax)
	out.WLRS = clampFloat(p.WLRS, modes.WeightMin, modes.WeightMax)
	out.DRConsecutivePenalty = clampFloat(p.DRConsecutivePenalty, PenaltyMin, PenaltyMax)
	if p.DR.ConsecutivePenalty != nil {
		v := clampFloat(*p.DR.ConsecutivePenalty, PenaltyMin, PenaltyMax)
		out.DR.ConsecutivePenalty = &v
	}
	return out
}

// Resolved is the per-(meeting type, mode) scoring profile the engine uses
type Resolved struct {
	Thresholds modes.Thresholds
	Weights    modes.Weights
	Priority   int
}

func clampInt(v, low, high int) int {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}

func clampFloat(v, low, high float64) float64 {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}
