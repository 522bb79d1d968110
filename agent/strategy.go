package agent

import (
	"math"

	"golang.org/x/exp/rand"
)

// Strategy selects the index of one candidate given their scores. It must be
// a pure function of the scores and the random source.
type Strategy func(scores []float64, rng *rand.Rand) int

// Best picks the highest score, the first one on ties.
func Best() Strategy {
	return func(scores []float64, rng *rand.Rand) int {
		return findMax(scores)
	}
}

// Temperature samples from the softmax of scores / temperature. A temperature
// of zero or less degenerates to Best.
func Temperature(temperature float64) Strategy {
	if temperature <= 0 {
		return Best()
	}
	return func(scores []float64, rng *rand.Rand) int {
		return sample(adjustTemperature(scores, temperature), rng)
	}
}

// EpsilonGreedy picks uniformly with probability epsilon, else the best score.
func EpsilonGreedy(epsilon float64) Strategy {
	return func(scores []float64, rng *rand.Rand) int {
		if rng.Float64() < epsilon {
			return rng.Intn(len(scores))
		}
		return findMax(scores)
	}
}

func findMax(scores []float64) int {
	best := 0
	for i, score := range scores {
		if score > scores[best] {
			best = i
		}
	}
	return best
}

func adjustTemperature(scores []float64, temperature float64) []float64 {
	// Shift by the maximum so exponents stay bounded
	highest := scores[findMax(scores)]
	sum := 0.0
	probs := make([]float64, len(scores))
	for i, score := range scores {
		probs[i] = math.Exp((score - highest) / temperature)
		sum += probs[i]
	}
	// Normalize
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

func sample(probs []float64, rng *rand.Rand) int {
	sampled := rng.Float64()
	cumulative := 0.0
	for i, prob := range probs {
		cumulative += prob
		if sampled < cumulative {
			return i
		}
	}
	return len(probs) - 1 // Fallback in case of rounding errors
}
