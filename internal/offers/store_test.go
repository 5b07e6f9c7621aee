package offers

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partsbid/matching-engine/internal/model"
)

func TestPostgresStore_InsertOffer(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO offers`).
		WithArgs("offer-1", "req-1", "adv-1", 2, "", "SUBMITTED",
			280.0, 2, 50.0, now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO offer_lines`).
		WithArgs("offer-1", int64(1), 120.0, 2, 90, 2).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO offer_lines`).
		WithArgs("offer-1", int64(2), 40.0, 1, 30, 2).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err = store.InsertOffer(context.Background(), &model.Offer{
		ID: "offer-1", RequestID: "req-1", AdvisorID: "adv-1",
		DeliveryDays: 2, State: model.OfferSubmitted,
		TotalAmount: 280.0, ItemCount: 2, CoveragePct: 50.0,
		SubmittedAt: now, UpdatedAt: now,
		Lines: []model.OfferLine{
			{OfferID: "offer-1", RequestLineID: 1, UnitPrice: 120, Quantity: 2, WarrantyDays: 90, DeliveryDays: 2},
			{OfferID: "offer-1", RequestLineID: 2, UnitPrice: 40, Quantity: 1, WarrantyDays: 30, DeliveryDays: 2},
		},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetClientResponse(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE requests SET state`).
		WithArgs("req-1", "OFFERS_ACCEPTED").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE offers SET state`).
		WithArgs("req-1", "ACCEPTED").
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectCommit()

	err = store.SetClientResponse(context.Background(), "req-1",
		model.RequestOffersAccepted, model.OfferAccepted)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetClientResponse_NotEvaluated(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE requests SET state`).
		WithArgs("req-1", "OFFERS_REJECTED").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err = store.SetClientResponse(context.Background(), "req-1",
		model.RequestOffersRejected, model.OfferRejected)
	assert.ErrorIs(t, err, ErrNotEvaluated)
	assert.NoError(t, mock.ExpectationsWereMet())
}
