package offers

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partsbid/matching-engine/internal/model"
)

type mockOfferStore struct {
	request  *model.Request
	lineIDs  map[int64]bool
	inserted *model.Offer

	responseState model.RequestState
	offerState    model.OfferState
}

func (m *mockOfferStore) GetRequest(ctx context.Context, id string) (*model.Request, error) {
	if m.request == nil || m.request.ID != id {
		return nil, ErrRequestNotFound
	}
	cp := *m.request
	return &cp, nil
}

func (m *mockOfferStore) RequestLineIDs(ctx context.Context, requestID string) (map[int64]bool, error) {
	return m.lineIDs, nil
}

func (m *mockOfferStore) InsertOffer(ctx context.Context, offer *model.Offer) error {
	m.inserted = offer
	return nil
}

func (m *mockOfferStore) SetClientResponse(ctx context.Context, requestID string, state model.RequestState, offerState model.OfferState) error {
	m.responseState = state
	m.offerState = offerState
	return nil
}

type mockLock struct {
	locked bool
}

func (m *mockLock) IsLocked(ctx context.Context, requestID string) (bool, error) {
	return m.locked, nil
}

func validSubmission() Submission {
	return Submission{
		RequestID: "req-1",
		AdvisorID: "adv-1",
		Lines: []SubmissionLine{
			{RequestLineID: 1, UnitPrice: 120, Quantity: 2, WarrantyDays: 90, DeliveryDays: 2},
			{RequestLineID: 2, UnitPrice: 40, Quantity: 1, WarrantyDays: 30, DeliveryDays: 2},
		},
	}
}

func openStore() *mockOfferStore {
	return &mockOfferStore{
		request: &model.Request{ID: "req-1", State: model.RequestOpen},
		lineIDs: map[int64]bool{1: true, 2: true, 3: true, 4: true},
	}
}

func TestSubmit(t *testing.T) {
	store := openStore()
	svc := NewService(store, &mockLock{})

	offer, err := svc.Submit(context.Background(), validSubmission())
	require.NoError(t, err)

	assert.NotEmpty(t, offer.ID)
	assert.Equal(t, model.OfferSubmitted, offer.State)
	assert.InDelta(t, 280.0, offer.TotalAmount, 0.001)
	assert.InDelta(t, 50.0, offer.CoveragePct, 0.001, "2 of 4 lines quoted")
	require.NotNil(t, store.inserted)
	assert.Len(t, store.inserted.Lines, 2)
}

func TestSubmit_RejectsLockedRequest(t *testing.T) {
	store := openStore()
	svc := NewService(store, &mockLock{locked: true})

	_, err := svc.Submit(context.Background(), validSubmission())
	assert.True(t, eris.Is(err, ErrRequestLocked))
	assert.Nil(t, store.inserted)
}

func TestSubmit_RejectsClosedRequest(t *testing.T) {
	store := openStore()
	store.request.State = model.RequestEvaluated
	svc := NewService(store, &mockLock{})

	_, err := svc.Submit(context.Background(), validSubmission())
	assert.True(t, eris.Is(err, ErrRequestClosed))
}

func TestSubmit_ValidatesLines(t *testing.T) {
	svc := NewService(openStore(), &mockLock{})

	tests := []struct {
		name    string
		mutate  func(*Submission)
		wantErr string
	}{
		{"no lines", func(s *Submission) { s.Lines = nil }, "at least one line"},
		{"no advisor", func(s *Submission) { s.AdvisorID = "" }, "advisor id"},
		{"foreign line", func(s *Submission) { s.Lines[0].RequestLineID = 99 }, "does not belong"},
		{"duplicate line", func(s *Submission) { s.Lines[1].RequestLineID = 1 }, "quoted twice"},
		{"zero price", func(s *Submission) { s.Lines[0].UnitPrice = 0 }, "unit price"},
		{"zero quantity", func(s *Submission) { s.Lines[0].Quantity = 0 }, "quantity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := validSubmission()
			tt.mutate(&sub)
			_, err := svc.Submit(context.Background(), sub)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRespond_Accepted(t *testing.T) {
	store := openStore()
	store.request.State = model.RequestEvaluated
	svc := NewService(store, &mockLock{})

	require.NoError(t, svc.Respond(context.Background(), "req-1", true))
	assert.Equal(t, model.RequestOffersAccepted, store.responseState)
	assert.Equal(t, model.OfferAccepted, store.offerState)
}

func TestRespond_Rejected(t *testing.T) {
	store := openStore()
	store.request.State = model.RequestEvaluated
	svc := NewService(store, &mockLock{})

	require.NoError(t, svc.Respond(context.Background(), "req-1", false))
	assert.Equal(t, model.RequestOffersRejected, store.responseState)
	assert.Equal(t, model.OfferRejected, store.offerState)
}

func TestRespond_RequiresEvaluation(t *testing.T) {
	svc := NewService(openStore(), &mockLock{})

	err := svc.Respond(context.Background(), "req-1", true)
	assert.True(t, eris.Is(err, ErrNotEvaluated))
}
