package evaluation

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partsbid/matching-engine/internal/config"
	"github.com/partsbid/matching-engine/internal/events"
	"github.com/partsbid/matching-engine/internal/model"
)

type mockStore struct {
	snapshot *Snapshot
	loadErr  error
	applyErr error
	blockOn  bool // LoadSnapshot waits for ctx cancellation

	applied *Commit
}

func (m *mockStore) LoadSnapshot(ctx context.Context, requestID string) (*Snapshot, error) {
	if m.blockOn {
		<-ctx.Done()
		return nil, eris.Wrap(ctx.Err(), "evaluation: load snapshot")
	}
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.snapshot, nil
}

func (m *mockStore) Apply(ctx context.Context, commit *Commit) error {
	if m.applyErr != nil {
		return m.applyErr
	}
	m.applied = commit
	return nil
}

func testEvalConfig() config.EvaluationConfig {
	return config.EvaluationConfig{
		PriceWeight:    0.50,
		DeliveryWeight: 0.35,
		WarrantyWeight: 0.15,
		CoverageMinPct: 50.0,
		TimeoutSecs:    1,
		TieBreak:       "earliest_submission",
	}
}

func fourLineRequest() *Snapshot {
	return &Snapshot{
		Request: &model.Request{ID: "req-1", DesiredOffers: 3, State: model.RequestOpen},
		Lines: []model.RequestLine{
			{ID: 1, RequestID: "req-1", Name: "pastillas freno", Quantity: 2},
			{ID: 2, RequestID: "req-1", Name: "disco freno", Quantity: 2},
			{ID: 3, RequestID: "req-1", Name: "filtro aceite", Quantity: 1},
			{ID: 4, RequestID: "req-1", Name: "amortiguador", Quantity: 2},
		},
	}
}

func offer(id, advisorID string, submittedAt time.Time, lines ...model.OfferLine) model.Offer {
	for i := range lines {
		lines[i].OfferID = id
	}
	return model.Offer{
		ID:          id,
		RequestID:   "req-1",
		AdvisorID:   advisorID,
		State:       model.OfferSubmitted,
		SubmittedAt: submittedAt,
		Lines:       lines,
	}
}

func TestEvaluateRequest_MixedAdjudication(t *testing.T) {
	// Offer A quotes lines 1-3 (75% coverage), offer B only line 4 (25%).
	// A wins its lines on score; B wins line 4 as the sole bidder.
	now := time.Now().UTC()
	snap := fourLineRequest()
	snap.Offers = []model.Offer{
		offer("offer-a", "adv-a", now,
			model.OfferLine{ID: 11, RequestLineID: 1, UnitPrice: 120, Quantity: 2, WarrantyDays: 90, DeliveryDays: 2},
			model.OfferLine{ID: 12, RequestLineID: 2, UnitPrice: 300, Quantity: 2, WarrantyDays: 90, DeliveryDays: 2},
			model.OfferLine{ID: 13, RequestLineID: 3, UnitPrice: 40, Quantity: 1, WarrantyDays: 30, DeliveryDays: 2},
		),
		offer("offer-b", "adv-b", now.Add(time.Minute),
			model.OfferLine{ID: 21, RequestLineID: 4, UnitPrice: 500, Quantity: 2, WarrantyDays: 180, DeliveryDays: 5},
		),
	}

	store := &mockStore{snapshot: snap}
	eng := New(store, events.Nop{}, testEvalConfig())

	out, err := eng.EvaluateRequest(context.Background(), "req-1")
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.Equal(t, 4, out.LinesAwarded)
	assert.Equal(t, 2, out.DistinctWinners)
	assert.True(t, out.Mixed)
	assert.InDelta(t, 120*2+300*2+40+500*2, out.TotalAwarded, 0.001)

	require.NotNil(t, store.applied)
	assert.Equal(t, model.RequestEvaluated, store.applied.RequestState)
	require.Len(t, store.applied.Adjudications, 4)

	reasons := map[int64]model.AdjudicationReason{}
	for _, a := range store.applied.Adjudications {
		reasons[a.RequestLineID] = a.Reason
	}
	assert.Equal(t, model.ReasonBestScore, reasons[1])
	assert.Equal(t, model.ReasonBestScore, reasons[2])
	assert.Equal(t, model.ReasonBestScore, reasons[3])
	assert.Equal(t, model.ReasonSoleOffer, reasons[4])

	assert.Equal(t, model.OfferWinning, store.applied.OfferStates["offer-a"])
	assert.Equal(t, model.OfferWinning, store.applied.OfferStates["offer-b"])

	require.NotNil(t, store.applied.Run)
	assert.Equal(t, 2, store.applied.Run.DistinctWinners)
	assert.True(t, store.applied.Run.Mixed)
	assert.NotEmpty(t, store.applied.Run.Detail)
}

func TestEvaluateRequest_BestScoreWinsAmongQualified(t *testing.T) {
	now := time.Now().UTC()
	snap := &Snapshot{
		Request: &model.Request{ID: "req-1", State: model.RequestOpen},
		Lines:   []model.RequestLine{{ID: 1, RequestID: "req-1", Name: "bateria", Quantity: 1}},
	}
	snap.Offers = []model.Offer{
		offer("offer-cheap", "adv-a", now,
			model.OfferLine{ID: 11, RequestLineID: 1, UnitPrice: 100, Quantity: 1, WarrantyDays: 365, DeliveryDays: 1},
		),
		offer("offer-pricey", "adv-b", now,
			model.OfferLine{ID: 21, RequestLineID: 1, UnitPrice: 250, Quantity: 1, WarrantyDays: 90, DeliveryDays: 4},
		),
	}

	store := &mockStore{snapshot: snap}
	eng := New(store, events.Nop{}, testEvalConfig())

	out, err := eng.EvaluateRequest(context.Background(), "req-1")
	require.NoError(t, err)

	assert.False(t, out.Mixed)
	require.Len(t, store.applied.Adjudications, 1)
	assert.Equal(t, "offer-cheap", store.applied.Adjudications[0].OfferID)
	assert.Equal(t, model.OfferNotSelected, store.applied.OfferStates["offer-pricey"])

	// Every candidate line gets its scores persisted, not just the winner's.
	assert.Len(t, store.applied.ScoredLines, 2)
}

func TestEvaluateRequest_MultipleSubThresholdBiddersLeaveLineUnadjudicated(t *testing.T) {
	// Two offers each quote one line of three: 33% coverage each. Neither
	// qualifies and neither is a sole bidder exception.
	now := time.Now().UTC()
	snap := &Snapshot{
		Request: &model.Request{ID: "req-1", State: model.RequestOpen},
		Lines: []model.RequestLine{
			{ID: 1, RequestID: "req-1", Name: "correa", Quantity: 1},
			{ID: 2, RequestID: "req-1", Name: "bujia", Quantity: 4},
			{ID: 3, RequestID: "req-1", Name: "radiador", Quantity: 1},
		},
		Offers: []model.Offer{
			offer("offer-a", "adv-a", now,
				model.OfferLine{ID: 11, RequestLineID: 1, UnitPrice: 80, Quantity: 1, WarrantyDays: 30, DeliveryDays: 2},
			),
			offer("offer-b", "adv-b", now,
				model.OfferLine{ID: 21, RequestLineID: 1, UnitPrice: 75, Quantity: 1, WarrantyDays: 60, DeliveryDays: 3},
			),
		},
	}

	store := &mockStore{snapshot: snap}
	eng := New(store, events.Nop{}, testEvalConfig())

	out, err := eng.EvaluateRequest(context.Background(), "req-1")
	require.NoError(t, err)

	assert.False(t, out.Success)
	assert.Equal(t, ReasonNothingAwarded, out.Reason)
	assert.Equal(t, model.RequestClosedNoOffers, out.State)
	assert.Empty(t, store.applied.Adjudications)
	assert.Equal(t, model.RequestClosedNoOffers, store.applied.RequestState,
		"a pass awarding nothing must close the request, not mark it evaluated")
	assert.Equal(t, model.OfferNotSelected, store.applied.OfferStates["offer-a"])
	assert.Equal(t, model.OfferNotSelected, store.applied.OfferStates["offer-b"])
}

func TestEvaluateRequest_FragmentaryOfferDoesNotSkewScores(t *testing.T) {
	// A and B quote every line; C quotes only the first at an outlier price.
	// If C entered the normalization, its price would compress the range and
	// hand the first line to B. Scoring among the qualified pair keeps A the
	// winner on price.
	now := time.Now().UTC()
	snap := &Snapshot{
		Request: &model.Request{ID: "req-1", State: model.RequestOpen},
		Lines: []model.RequestLine{
			{ID: 1, RequestID: "req-1", Name: "alternador", Quantity: 1},
			{ID: 2, RequestID: "req-1", Name: "bomba agua", Quantity: 1},
			{ID: 3, RequestID: "req-1", Name: "termostato", Quantity: 1},
		},
		Offers: []model.Offer{
			offer("offer-a", "adv-a", now,
				model.OfferLine{ID: 11, RequestLineID: 1, UnitPrice: 100, Quantity: 1, WarrantyDays: 90, DeliveryDays: 10},
				model.OfferLine{ID: 12, RequestLineID: 2, UnitPrice: 100, Quantity: 1, WarrantyDays: 90, DeliveryDays: 10},
				model.OfferLine{ID: 13, RequestLineID: 3, UnitPrice: 100, Quantity: 1, WarrantyDays: 90, DeliveryDays: 10},
			),
			offer("offer-b", "adv-b", now,
				model.OfferLine{ID: 21, RequestLineID: 1, UnitPrice: 110, Quantity: 1, WarrantyDays: 90, DeliveryDays: 1},
				model.OfferLine{ID: 22, RequestLineID: 2, UnitPrice: 110, Quantity: 1, WarrantyDays: 90, DeliveryDays: 1},
				model.OfferLine{ID: 23, RequestLineID: 3, UnitPrice: 110, Quantity: 1, WarrantyDays: 90, DeliveryDays: 1},
			),
			offer("offer-c", "adv-c", now,
				model.OfferLine{ID: 31, RequestLineID: 1, UnitPrice: 2000, Quantity: 1, WarrantyDays: 90, DeliveryDays: 5},
			),
		},
	}

	store := &mockStore{snapshot: snap}
	eng := New(store, events.Nop{}, testEvalConfig())

	out, err := eng.EvaluateRequest(context.Background(), "req-1")
	require.NoError(t, err)

	assert.True(t, out.Success)
	require.Len(t, store.applied.Adjudications, 3)
	for _, a := range store.applied.Adjudications {
		assert.Equal(t, "offer-a", a.OfferID, "line %d", a.RequestLineID)
	}
	assert.Equal(t, model.OfferNotSelected, store.applied.OfferStates["offer-c"])
}

func TestEvaluateRequest_ZeroOffersClosesRequest(t *testing.T) {
	store := &mockStore{snapshot: fourLineRequest()}
	eng := New(store, events.Nop{}, testEvalConfig())

	out, err := eng.EvaluateRequest(context.Background(), "req-1")
	require.NoError(t, err)

	assert.False(t, out.Success)
	assert.Equal(t, ReasonNoOffers, out.Reason)
	assert.Equal(t, model.RequestClosedNoOffers, out.State)

	require.NotNil(t, store.applied)
	assert.Equal(t, model.RequestClosedNoOffers, store.applied.RequestState)
	assert.Empty(t, store.applied.Adjudications)
	require.NotNil(t, store.applied.Run)
	assert.Equal(t, 0, store.applied.Run.OffersEvaluated)
}

func TestEvaluateRequest_RejectsAlreadyEvaluated(t *testing.T) {
	snap := fourLineRequest()
	snap.Request.State = model.RequestEvaluated

	store := &mockStore{snapshot: snap}
	eng := New(store, events.Nop{}, testEvalConfig())

	_, err := eng.EvaluateRequest(context.Background(), "req-1")
	assert.True(t, eris.Is(err, ErrAlreadyEvaluated))
	assert.Nil(t, store.applied, "rejection must not write")
}

func TestEvaluateRequest_UnknownRequest(t *testing.T) {
	store := &mockStore{loadErr: ErrRequestNotFound}
	eng := New(store, events.Nop{}, testEvalConfig())

	_, err := eng.EvaluateRequest(context.Background(), "missing")
	assert.True(t, eris.Is(err, ErrRequestNotFound))
}

func TestEvaluateWithTimeout_LeavesStateUntouched(t *testing.T) {
	store := &mockStore{blockOn: true}
	eng := New(store, events.Nop{}, testEvalConfig())

	out, err := eng.EvaluateWithTimeout(context.Background(), "req-1")
	require.NoError(t, err)

	assert.True(t, out.TimedOut)
	assert.False(t, out.Success)
	assert.Equal(t, ReasonTimeout, out.Reason)
	assert.Nil(t, store.applied, "timeout must not write")
}

func TestEvaluateWithTimeout_ExecutionErrorCarriesCause(t *testing.T) {
	store := &mockStore{snapshot: func() *Snapshot {
		s := fourLineRequest()
		s.Offers = []model.Offer{offer("offer-a", "adv-a", time.Now(),
			model.OfferLine{ID: 11, RequestLineID: 1, UnitPrice: 10, Quantity: 1})}
		return s
	}(), applyErr: eris.New("connection reset")}
	eng := New(store, events.Nop{}, testEvalConfig())

	out, err := eng.EvaluateWithTimeout(context.Background(), "req-1")
	require.NoError(t, err)

	assert.False(t, out.Success)
	assert.False(t, out.TimedOut)
	assert.Equal(t, ReasonExecutionError, out.Reason)
	require.Error(t, out.Err)
	assert.Contains(t, out.Err.Error(), "connection reset")
}

func TestEvaluateWithTimeout_PassesValidationErrorsThrough(t *testing.T) {
	store := &mockStore{loadErr: ErrRequestNotFound}
	eng := New(store, events.Nop{}, testEvalConfig())

	_, err := eng.EvaluateWithTimeout(context.Background(), "missing")
	assert.True(t, eris.Is(err, ErrRequestNotFound))
}
