package evaluation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partsbid/matching-engine/internal/model"
	"github.com/partsbid/matching-engine/internal/scoring"
)

var testWeights = scoring.OfferWeights{Price: 0.50, Delivery: 0.35, Warranty: 0.15}

func cand(offerID string, price float64, deliveryDays, warrantyDays int) scoring.Candidate {
	return scoring.Candidate{
		OfferID:      offerID,
		AdvisorID:    "adv-" + offerID,
		UnitPrice:    price,
		Quantity:     1,
		DeliveryDays: deliveryDays,
		WarrantyDays: warrantyDays,
		SubmittedAt:  time.Unix(0, 0),
	}
}

func TestAdjudicateLine_TopQualifiedWins(t *testing.T) {
	line := model.RequestLine{ID: 1}
	coverage := map[string]float64{"a": 100, "b": 75, "c": 25}

	// c has the best raw terms but misses the gate; the win goes to the
	// best of the qualified pool.
	v := adjudicateLine(line, []scoring.Candidate{
		cand("c", 50, 1, 90),
		cand("a", 80, 2, 90),
		cand("b", 100, 2, 90),
	}, testWeights, scoring.TieBreakEarliestSubmission, coverage, 50)

	require.NotNil(t, v.winner)
	assert.Equal(t, "a", v.winner.OfferID)
	assert.Equal(t, model.ReasonBestScore, v.reason)
	assert.Equal(t, 3, v.quoted)
}

func TestAdjudicateLine_UnqualifiedQuoteExcludedFromNormalization(t *testing.T) {
	line := model.RequestLine{ID: 1}
	coverage := map[string]float64{"a": 100, "b": 100, "c": 33}

	// c's outlier price would compress the price range enough to flip the
	// winner to b if it were scored alongside the qualified pair.
	v := adjudicateLine(line, []scoring.Candidate{
		cand("a", 100, 10, 90),
		cand("b", 110, 1, 90),
		cand("c", 2000, 5, 90),
	}, testWeights, scoring.TieBreakEarliestSubmission, coverage, 50)

	require.NotNil(t, v.winner)
	assert.Equal(t, "a", v.winner.OfferID)
	require.Len(t, v.scores, 2)
	for _, ls := range v.scores {
		assert.NotEqual(t, "c", ls.OfferID)
	}
}

func TestAdjudicateLine_SoleBidderException(t *testing.T) {
	line := model.RequestLine{ID: 1}
	coverage := map[string]float64{"a": 25}

	v := adjudicateLine(line, []scoring.Candidate{cand("a", 80, 2, 30)}, testWeights, scoring.TieBreakEarliestSubmission, coverage, 50)

	require.NotNil(t, v.winner)
	assert.Equal(t, model.ReasonSoleOffer, v.reason)
}

func TestAdjudicateLine_MultipleSubThresholdUnadjudicated(t *testing.T) {
	line := model.RequestLine{ID: 1}
	coverage := map[string]float64{"a": 25, "b": 33}

	v := adjudicateLine(line, []scoring.Candidate{
		cand("a", 80, 2, 30),
		cand("b", 75, 3, 60),
	}, testWeights, scoring.TieBreakEarliestSubmission, coverage, 50)

	assert.Nil(t, v.winner)
	assert.Equal(t, noteInsufficientCoverage, v.note)
}

func TestAdjudicateLine_NoQuotes(t *testing.T) {
	v := adjudicateLine(model.RequestLine{ID: 1}, nil, testWeights, scoring.TieBreakEarliestSubmission, nil, 50)

	assert.Nil(t, v.winner)
	assert.Equal(t, noteNoQuotes, v.note)
}

func TestAdjudicateLine_ExactThresholdQualifies(t *testing.T) {
	coverage := map[string]float64{"a": 50}

	v := adjudicateLine(model.RequestLine{ID: 1}, []scoring.Candidate{cand("a", 80, 2, 30)}, testWeights, scoring.TieBreakEarliestSubmission, coverage, 50)

	require.NotNil(t, v.winner)
	assert.Equal(t, model.ReasonBestScore, v.reason)
}
