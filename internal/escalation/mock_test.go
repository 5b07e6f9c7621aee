package escalation

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/partsbid/matching-engine/internal/geo"
	"github.com/partsbid/matching-engine/internal/model"
)

type mockStore struct {
	request   *model.Request
	lineCount int
	stats     map[string]Stats
	statsErr  map[string]error

	inserted    []model.EscalationRecord
	tierRecords []model.EscalationRecord
	notified    []int64
	tierSet     int
	submitted   int
}

func (m *mockStore) GetRequest(ctx context.Context, id string) (*model.Request, error) {
	if m.request == nil || m.request.ID != id {
		return nil, ErrRequestNotFound
	}
	cp := *m.request
	return &cp, nil
}

func (m *mockStore) CountRequestLines(ctx context.Context, requestID string) (int, error) {
	return m.lineCount, nil
}

func (m *mockStore) AdvisorStats(ctx context.Context, advisorID string) (Stats, error) {
	if err, ok := m.statsErr[advisorID]; ok {
		return Stats{}, err
	}
	return m.stats[advisorID], nil
}

func (m *mockStore) InsertRecords(ctx context.Context, records []model.EscalationRecord) (int64, error) {
	m.inserted = append(m.inserted, records...)
	return int64(len(records)), nil
}

func (m *mockStore) ListTierRecords(ctx context.Context, requestID string, tier int) ([]model.EscalationRecord, error) {
	var out []model.EscalationRecord
	for _, r := range m.tierRecords {
		if r.Tier == tier && r.NotifiedAt == nil {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockStore) MarkNotified(ctx context.Context, recordID int64, notifiedAt, timeoutAt time.Time) error {
	m.notified = append(m.notified, recordID)
	return nil
}

func (m *mockStore) SetRequestTier(ctx context.Context, requestID string, tier int, escalatedAt time.Time) error {
	m.tierSet = tier
	return nil
}

func (m *mockStore) CountSubmittedOffers(ctx context.Context, requestID string) (int, error) {
	return m.submitted, nil
}

type mockDirectory struct {
	byCity  []Advisor
	byMetro []Advisor
	byHub   []Advisor
	all     []Advisor
}

func (m *mockDirectory) FindByCity(ctx context.Context, cityID string) ([]Advisor, error) {
	return m.byCity, nil
}

func (m *mockDirectory) FindByMetroAreaAny(ctx context.Context) ([]Advisor, error) {
	return m.byMetro, nil
}

func (m *mockDirectory) FindByHub(ctx context.Context, hubID string) ([]Advisor, error) {
	return m.byHub, nil
}

func (m *mockDirectory) FindAllActive(ctx context.Context) ([]Advisor, error) {
	return m.all, nil
}

type mockGateway struct {
	failFor map[string]bool
	sent    []string
}

func (m *mockGateway) Send(ctx context.Context, advisorID string, channel model.Channel, payload Payload) error {
	if m.failFor[advisorID] {
		return eris.Errorf("gateway: delivery to %s failed", advisorID)
	}
	m.sent = append(m.sent, advisorID)
	return nil
}

type fakeResolver struct {
	locations map[string]geo.Location
}

func (f *fakeResolver) Resolve(ctx context.Context, locationID string) (geo.Location, error) {
	loc, ok := f.locations[locationID]
	if !ok {
		return geo.Location{}, geo.ErrUnresolved
	}
	return loc, nil
}
