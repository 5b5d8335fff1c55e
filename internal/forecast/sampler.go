package forecast

import (
	"math"
	"math/rand/v2"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"

	"orcacast/domain/core"
	"orcacast/domain/forecast"
)

const (
	DefaultSampleCount   = 1000
	DefaultCredibleLevel = 0.90
)

// Sampler turns a raw activation into a posterior probability summary by perturbing the
// activation with zero-mean Gaussian noise of the equation's uncertainty scale, squashing
// each draw through the logistic and summarising the population.
type Sampler struct {
	sampleCount int
	level       float64
}

// NewSampler validates the sample count and credible level
func NewSampler(sampleCount int, level float64) (*Sampler, error) {
	if sampleCount < 1 {
		return nil, core.NewInvalidSampleCountError(sampleCount)
	}
	if !(level > 0 && level < 1) {
		return nil, core.NewInvalidLevelError(level)
	}
	return &Sampler{sampleCount: sampleCount, level: level}, nil
}

// DefaultSampler draws 1000 samples and reports a 90% credible interval
func DefaultSampler() *Sampler {
	return &Sampler{sampleCount: DefaultSampleCount, level: DefaultCredibleLevel}
}

// SampleCount returns the number of draws per call
func (s *Sampler) SampleCount() int { return s.sampleCount }

// Level returns the credible level
func (s *Sampler) Level() float64 { return s.level }

// Sample summarises the posterior of one raw activation with the configured sample count
func (s *Sampler) Sample(rng *rand.Rand, raw forecast.RawActivation, uncertaintyScale float64) (forecast.PosteriorSummary, error) {
	return SampleActivation(rng, raw.Value, uncertaintyScale, s.sampleCount, s.level)
}

// SampleActivation draws sampleCount posterior samples around activation and returns their
// mean and the central credible interval at level. The same rng state always yields the
// same summary.
func SampleActivation(rng *rand.Rand, activation, uncertaintyScale float64, sampleCount int, level float64) (forecast.PosteriorSummary, error) {
	if sampleCount < 1 {
		return forecast.PosteriorSummary{}, core.NewInvalidSampleCountError(sampleCount)
	}
	if !(level > 0 && level < 1) {
		return forecast.PosteriorSummary{}, core.NewInvalidLevelError(level)
	}

	// No uncertainty: every draw is the same point, so skip sampling and keep the
	// summary exact rather than subject to summation rounding.
	if uncertaintyScale == 0 {
		p := Logistic(activation)
		return forecast.PosteriorSummary{
			Mean:        p,
			Lower:       p,
			Upper:       p,
			Width:       0,
			SampleCount: sampleCount,
			Level:       level,
		}, nil
	}

	noise := distuv.Normal{Mu: 0, Sigma: uncertaintyScale, Src: rng}
	samples := make(stats.Float64Data, sampleCount)
	for i := range samples {
		samples[i] = Logistic(activation + noise.Rand())
	}

	return summarize(samples, level)
}

func summarize(samples stats.Float64Data, level float64) (forecast.PosteriorSummary, error) {
	mean, err := stats.Mean(samples)
	if err != nil {
		return forecast.PosteriorSummary{}, err
	}

	tail := (1 - level) / 2 * 100
	lower, err := stats.PercentileNearestRank(samples, tail)
	if err != nil {
		return forecast.PosteriorSummary{}, err
	}
	upper, err := stats.PercentileNearestRank(samples, 100-tail)
	if err != nil {
		return forecast.PosteriorSummary{}, err
	}

	// A heavily skewed population can put the mean outside the central interval;
	// widen the interval so it always brackets the mean.
	lower = math.Min(lower, mean)
	upper = math.Max(upper, mean)

	return forecast.PosteriorSummary{
		Mean:        mean,
		Lower:       lower,
		Upper:       upper,
		Width:       upper - lower,
		SampleCount: len(samples),
		Level:       level,
	}, nil
}

// Logistic maps an activation into (0,1). Evaluated in the form that cannot overflow.
func Logistic(a float64) float64 {
	if a >= 0 {
		return 1 / (1 + math.Exp(-a))
	}
	e := math.Exp(a)
	return e / (1 + e)
}
