package traffic

// SignalOptimizer derives a signal plan from a detection sample.
type SignalOptimizer interface {
	Optimize(s DetectionSample) SignalPlan
}

// Tier boundaries on the congestion ratio.
const (
	highCongestion   = 0.7
	mediumCongestion = 0.4
)

const (
	phaseJitterMin     = 0.95
	phaseJitterMax     = 1.05
	predictedJitterMin = 0.9
	predictedJitterMax = 1.1
	scoreMin           = 0.7
	scoreMax           = 0.95
)

var basePhases = map[Tier]Phases{
	TierHigh:   {40, 20, 15, 25},
	TierMedium: {30, 30, 20, 20},
	TierLow:    {25, 25, 25, 25},
}

var tierActions = map[Tier]Action{
	TierHigh:   ActionExtendMainRoad,
	TierMedium: ActionBalanced,
	TierLow:    ActionPedestrianPriority,
}

var actionMessages = map[Action]string{
	ActionExtendMainRoad:     "High Traffic: Extend main road green time by 25%",
	ActionBalanced:           "Medium Traffic: Maintain balanced signal timing",
	ActionPedestrianPriority: "Low Traffic: Optimize for pedestrian crossing",
}

// TierFor buckets a congestion ratio. Out-of-range values are clamped first.
func TierFor(congestion float64) Tier {
	c := Clamp01(congestion)
	switch {
	case c > highCongestion:
		return TierHigh
	case c > mediumCongestion:
		return TierMedium
	default:
		return TierLow
	}
}

// BasePhases returns the un-jittered phase plan of a tier.
func BasePhases(t Tier) Phases {
	return basePhases[t]
}

// ActionFor returns the advisory action of a tier.
func ActionFor(t Tier) Action {
	return tierActions[t]
}

// ActionMessage returns the human readable text of an action.
func ActionMessage(a Action) string {
	return actionMessages[a]
}

// RuleOptimizer maps congestion tiers to jittered phase plans.
type RuleOptimizer struct {
	rng *Rand
}

// NewRuleOptimizer returns an optimizer drawing jitter from rng.
func NewRuleOptimizer(rng *Rand) *RuleOptimizer {
	return &RuleOptimizer{rng: rng}
}

// Optimize implements SignalOptimizer.
func (o *RuleOptimizer) Optimize(s DetectionSample) SignalPlan {
	congestion := Clamp01(s.Congestion)
	tier := TierFor(congestion)
	action := ActionFor(tier)

	// Each phase drifts independently.
	var phases Phases
	for i, base := range BasePhases(tier) {
		phases[i] = Round(base*o.rng.Uniform(phaseJitterMin, phaseJitterMax), 1)
	}

	return SignalPlan{
		JunctionID:          s.JunctionID,
		JunctionName:        s.JunctionName,
		Tier:                tier,
		CurrentCongestion:   Round(congestion, 3),
		PredictedCongestion: Round(Clamp01(congestion*o.rng.Uniform(predictedJitterMin, predictedJitterMax)), 3),
		Phases:              phases,
		TotalCycleTime:      Round(phases.Sum(), 1),
		Action:              action,
		RecommendedAction:   ActionMessage(action),
		OptimizationScore:   Round(o.rng.Uniform(scoreMin, scoreMax), 2),
		Timestamp:           s.Timestamp,
	}
}
