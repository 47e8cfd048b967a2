// Package memory is a process-local repository.Store. It backs unit tests
// and the "memory" storage driver.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/sakib404-hub/zap-shit-server/internal/domain"
	"github.com/sakib404-hub/zap-shit-server/internal/repository"
	outboxDomain "github.com/sakib404-hub/zap-shit-server/pkg/outbox/domain"
)

type state struct {
	users        map[string]domain.User
	parcels      map[string]domain.Parcel
	trackingIDs  map[string]string
	payments     map[string]domain.Payment
	riders       map[string]domain.Rider
	riderEmails  map[string]string
	outbox       []outboxDomain.OutboxEvent
	nextOutboxID int64
}

func newState() *state {
	return &state{
		users:       make(map[string]domain.User),
		parcels:     make(map[string]domain.Parcel),
		trackingIDs: make(map[string]string),
		payments:    make(map[string]domain.Payment),
		riders:      make(map[string]domain.Rider),
		riderEmails: make(map[string]string),
	}
}

func (s *state) clone() state {
	return state{
		users:        maps.Clone(s.users),
		parcels:      maps.Clone(s.parcels),
		trackingIDs:  maps.Clone(s.trackingIDs),
		payments:     maps.Clone(s.payments),
		riders:       maps.Clone(s.riders),
		riderEmails:  maps.Clone(s.riderEmails),
		outbox:       slices.Clone(s.outbox),
		nextOutboxID: s.nextOutboxID,
	}
}

// Store serializes transactions with a single mutex. A rolled back
// transaction restores the snapshot taken when it began.
type Store struct {
	mu   *sync.Mutex
	data *state
	inTx bool
}

func NewStore() *Store {
	return &Store{
		mu:   &sync.Mutex{},
		data: newState(),
	}
}

func (s *Store) Users() repository.UserRepository       { return &userRepo{s: s} }
func (s *Store) Parcels() repository.ParcelRepository   { return &parcelRepo{s: s} }
func (s *Store) Payments() repository.PaymentRepository { return &paymentRepo{s: s} }
func (s *Store) Riders() repository.RiderRepository     { return &riderRepo{s: s} }
func (s *Store) Outbox() repository.OutboxWriter        { return &outboxWriter{s: s} }

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	tx := &Store{mu: s.mu, data: s.data, inTx: true}

	if err := fn(ctx, tx); err != nil {
		*s.data = snapshot
		return err
	}

	if err := ctx.Err(); err != nil {
		*s.data = snapshot
		return err
	}

	return nil
}

// OutboxEvents returns the committed outbox events in append order.
func (s *Store) OutboxEvents() []outboxDomain.OutboxEvent {
	unlock := s.acquire()
	defer unlock()

	return slices.Clone(s.data.outbox)
}

func (s *Store) acquire() func() {
	if s.inTx {
		return func() {}
	}

	s.mu.Lock()
	return s.mu.Unlock
}

type outboxWriter struct {
	s *Store
}

func (w *outboxWriter) Append(_ context.Context, event *outboxDomain.OutboxEvent) error {
	unlock := w.s.acquire()
	defer unlock()

	w.s.data.nextOutboxID++
	event.Id = w.s.data.nextOutboxID
	w.s.data.outbox = append(w.s.data.outbox, *event)

	return nil
}
