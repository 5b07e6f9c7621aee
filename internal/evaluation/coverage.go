package evaluation

import (
	"github.com/partsbid/matching-engine/internal/model"
	"github.com/partsbid/matching-engine/internal/scoring"
)

// Reasons a line ends up without an award.
const (
	noteNoQuotes             = "no offers quote this line"
	noteInsufficientCoverage = "no offers with sufficient coverage"
)

// lineVerdict is the outcome of scoring one request line.
type lineVerdict struct {
	line   model.RequestLine
	quoted int                 // offers quoting this line, qualified or not
	scores []scoring.LineScore // best-first, the competing pool only
	winner *scoring.LineScore
	reason model.AdjudicationReason
	note   string // set when unadjudicated
}

// adjudicateLine applies the coverage gate and scores one request line.
// Normalization runs only across the coverage-qualified quotes, so a
// fragmentary offer's outlier price cannot compress the ranges for the real
// competitors. With no qualified bidder, a sole bidder still wins by
// exception; two or more sub-threshold bidders leave the line unadjudicated
// rather than rewarding fragmentary offers.
func adjudicateLine(line model.RequestLine, candidates []scoring.Candidate, weights scoring.OfferWeights, tieBreak string, coveragePct map[string]float64, minPct float64) lineVerdict {
	v := lineVerdict{line: line, quoted: len(candidates)}

	if len(candidates) == 0 {
		v.note = noteNoQuotes
		return v
	}

	var qualified []scoring.Candidate
	for _, c := range candidates {
		if coveragePct[c.OfferID] >= minPct {
			qualified = append(qualified, c)
		}
	}

	switch {
	case len(qualified) > 0:
		v.scores = scoring.ScoreLine(qualified, weights, tieBreak)
		v.winner = &v.scores[0]
		v.reason = model.ReasonBestScore
	case len(candidates) == 1:
		v.scores = scoring.ScoreLine(candidates, weights, tieBreak)
		v.winner = &v.scores[0]
		v.reason = model.ReasonSoleOffer
	default:
		// Scored among themselves for the audit trail only.
		v.scores = scoring.ScoreLine(candidates, weights, tieBreak)
		v.note = noteInsufficientCoverage
	}
	return v
}
