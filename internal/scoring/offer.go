package scoring

import (
	"sort"
	"time"
)

// Tie-break policies for identical composite line scores.
const (
	TieBreakEarliestSubmission = "earliest_submission"
	TieBreakLowestPrice        = "lowest_price"
)

// OfferWeights are the per-line criterion weights. They should sum to 1.0
// (validated at config load).
type OfferWeights struct {
	Price    float64
	Delivery float64
	Warranty float64
}

// Candidate is one offer line competing for a request line.
type Candidate struct {
	OfferID      string
	OfferLineID  int64
	AdvisorID    string
	UnitPrice    float64
	Quantity     int
	DeliveryDays int
	WarrantyDays int
	SubmittedAt  time.Time
}

// LineScore is a scored candidate.
type LineScore struct {
	Candidate

	PriceScore     float64
	DeliveryScore  float64
	WarrantyScore  float64
	CompositeScore float64
}

// ScoreLine scores every candidate for one request line via min-max
// normalization across the candidate set (price and delivery lower-better,
// warranty higher-better; a degenerate criterion where min==max scores a
// perfect 1.0 for everyone). Returns the candidates sorted best-first, ties
// broken by the given policy.
func ScoreLine(candidates []Candidate, w OfferWeights, tieBreak string) []LineScore {
	if len(candidates) == 0 {
		return nil
	}

	minPrice, maxPrice := minMax(candidates, func(c Candidate) float64 { return c.UnitPrice })
	minDel, maxDel := minMax(candidates, func(c Candidate) float64 { return float64(c.DeliveryDays) })
	minWar, maxWar := minMax(candidates, func(c Candidate) float64 { return float64(c.WarrantyDays) })

	scores := make([]LineScore, len(candidates))
	for i, c := range candidates {
		ls := LineScore{Candidate: c}
		ls.PriceScore = normalizeLowerBetter(c.UnitPrice, minPrice, maxPrice)
		ls.DeliveryScore = normalizeLowerBetter(float64(c.DeliveryDays), minDel, maxDel)
		ls.WarrantyScore = normalizeHigherBetter(float64(c.WarrantyDays), minWar, maxWar)
		ls.CompositeScore = w.Price*ls.PriceScore + w.Delivery*ls.DeliveryScore + w.Warranty*ls.WarrantyScore
		scores[i] = ls
	}

	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].CompositeScore != scores[j].CompositeScore {
			return scores[i].CompositeScore > scores[j].CompositeScore
		}
		if tieBreak == TieBreakLowestPrice {
			return scores[i].UnitPrice < scores[j].UnitPrice
		}
		return scores[i].SubmittedAt.Before(scores[j].SubmittedAt)
	})

	return scores
}

// normalizeLowerBetter maps v in [min,max] to [0,1] with the minimum
// scoring 1.0. Degenerate range scores 1.0.
func normalizeLowerBetter(v, min, max float64) float64 {
	if max == min {
		return 1.0
	}
	return (max - v) / (max - min)
}

// normalizeHigherBetter maps v in [min,max] to [0,1] with the maximum
// scoring 1.0. Degenerate range scores 1.0.
func normalizeHigherBetter(v, min, max float64) float64 {
	if max == min {
		return 1.0
	}
	return (v - min) / (max - min)
}

func minMax(candidates []Candidate, get func(Candidate) float64) (float64, float64) {
	lo, hi := get(candidates[0]), get(candidates[0])
	for _, c := range candidates[1:] {
		v := get(c)
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
