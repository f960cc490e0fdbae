package resonance

import (
	"math"
	"sort"
)

// RankReceivers filters the pool to eligible receivers and scores each one
// against the artifact and creator. Results are ordered by descending
// combined score. The sort is stable: exactly-equal scores keep their pool
// order. A NaN score (possible only when an input vector itself carries
// NaN) sorts last instead of poisoning the order.
func RankReceivers(a *Artifact, c *Creator, pool []*Receiver) []RankedReceiver {
	var ranked []RankedReceiver
	for _, r := range pool {
		if r.ReputationScore <= ReputationThreshold {
			continue
		}
		ranked = append(ranked, RankedReceiver{
			Receiver: r,
			Score:    CombinedScore(a, c, r),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return scoreLess(ranked[j].Score, ranked[i].Score)
	})
	return ranked
}

// QueryBestReceivers returns the eligible receivers in rank order. Receivers
// are returned by reference; nothing in the pool is copied or mutated.
func QueryBestReceivers(a *Artifact, c *Creator, pool []*Receiver) []*Receiver {
	ranked := RankReceivers(a, c, pool)
	receivers := make([]*Receiver, len(ranked))
	for i, rr := range ranked {
		receivers[i] = rr.Receiver
	}
	return receivers
}

// scoreLess is a total order over float64 that places NaN below every
// other value, so ranking stays deterministic on malformed input.
func scoreLess(x, y float64) bool {
	if math.IsNaN(x) {
		return !math.IsNaN(y)
	}
	if math.IsNaN(y) {
		return false
	}
	return x < y
}
