// Package evaluation implements the offer evaluation engine: per-line
// multi-criteria scoring, the coverage gate, and atomic adjudication commit.
package evaluation

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/partsbid/matching-engine/internal/model"
)

var (
	// ErrRequestNotFound indicates the request id does not exist.
	ErrRequestNotFound = eris.New("evaluation: request not found")
	// ErrAlreadyEvaluated indicates the request was evaluated before.
	// Adjudications are immutable, so a second pass is rejected outright.
	ErrAlreadyEvaluated = eris.New("evaluation: request already evaluated")
)

// Snapshot is everything one evaluation pass reads: the request, its lines,
// and the SUBMITTED offers with their line quotes attached.
type Snapshot struct {
	Request *model.Request
	Lines   []model.RequestLine
	Offers  []model.Offer
}

// Commit is the full write set of one completed pass. The store applies it
// in a single transaction; a pass that does not finish writes nothing.
type Commit struct {
	RequestID    string
	RequestState model.RequestState
	EvaluatedAt  time.Time
	TotalAwarded float64

	Adjudications []model.Adjudication
	ScoredLines   []model.OfferLine
	OfferStates   map[string]model.OfferState
	Run           *model.EvaluationRun
}

// Store loads evaluation snapshots and applies commits.
type Store interface {
	LoadSnapshot(ctx context.Context, requestID string) (*Snapshot, error)
	Apply(ctx context.Context, commit *Commit) error
}
