package ranking

// Params defines all configurable parameters for the confidence ranking and
// learning algorithm.
type Params struct {
	// MinSamples is the scoped-entry sample size at which the ranker trusts
	// the scoped adjustment outright. Below it, the scoped and global
	// adjustments are blended proportionally to the scoped sample size.
	MinSamples int

	// LearningRate is the EMA step size applied on each feedback event.
	LearningRate float64

	// MaxAdjustment bounds the learned adjustment to [-MaxAdjustment, +MaxAdjustment].
	MaxAdjustment float64

	// HighRatingThreshold is the minimum effectiveness rating for an accepted
	// suggestion to count as a fully positive outcome signal.
	HighRatingThreshold int
}

// ParamsConfig allows overriding the default parameters when creating a new
// Params instance. Zero values keep the default.
type ParamsConfig struct {
	MinSamples          int
	LearningRate        float64
	MaxAdjustment       float64
	HighRatingThreshold int
}

// NewDefaultParams creates a new Params instance with default values.
func NewDefaultParams() *Params {
	return &Params{
		MinSamples:          10,
		LearningRate:        0.1,
		MaxAdjustment:       0.3,
		HighRatingThreshold: 4,
	}
}

// NewParams creates a new Params instance with custom configuration.
func NewParams(config ParamsConfig) *Params {
	params := NewDefaultParams()

	if config.MinSamples > 0 {
		params.MinSamples = config.MinSamples
	}
	if config.LearningRate > 0 {
		params.LearningRate = config.LearningRate
	}
	if config.MaxAdjustment > 0 {
		params.MaxAdjustment = config.MaxAdjustment
	}
	if config.HighRatingThreshold > 0 {
		params.HighRatingThreshold = config.HighRatingThreshold
	}

	return params
}
