package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sakib404-hub/zap-shit-server/internal/domain"
	"github.com/sakib404-hub/zap-shit-server/internal/repository/memory"
)

var (
	errSessionNotFound = errors.New("no such checkout session")
	seedTime           = time.Date(2025, 2, 28, 10, 0, 0, 0, time.UTC)
)

type fakeProvider struct {
	mu            sync.Mutex
	sessions      map[string]domain.SessionOutcome
	created       []domain.CheckoutParams
	err           error
	retrieveCalls int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{sessions: make(map[string]domain.SessionOutcome)}
}

func (p *fakeProvider) addSession(outcome domain.SessionOutcome) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sessions[outcome.ID] = outcome
}

func (p *fakeProvider) CreateSession(_ context.Context, params domain.CheckoutParams) (*domain.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return nil, p.err
	}

	p.created = append(p.created, params)

	return &domain.CheckoutSession{
		ID:  "cs_test_created",
		URL: "https://checkout.example.com/pay/cs_test_created",
	}, nil
}

func (p *fakeProvider) RetrieveSession(_ context.Context, sessionID string) (*domain.SessionOutcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.retrieveCalls++

	if p.err != nil {
		return nil, p.err
	}

	outcome, ok := p.sessions[sessionID]
	if !ok {
		return nil, errSessionNotFound
	}

	return &outcome, nil
}

func seedParcel(store *memory.Store, id, sender string, cost float64) error {
	return store.Parcels().Create(context.Background(), &domain.Parcel{
		ID:             id,
		ParcelName:     "Box",
		Cost:           cost,
		SenderEmail:    sender,
		PaymentStatus:  domain.PaymentStatusUnpaid,
		DeliveryStatus: domain.DeliveryStatusNone,
		CreatedAt:      seedTime,
	})
}
