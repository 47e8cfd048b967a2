package repository

import (
	"context"
	"time"

	"github.com/sakib404-hub/zap-shit-server/internal/domain"
	outboxDomain "github.com/sakib404-hub/zap-shit-server/pkg/outbox/domain"
)

type UserRepository interface {
	// Upsert inserts a new user or refreshes last login of an existing one.
	// The stored role is never overwritten. It reports whether a row was created.
	Upsert(ctx context.Context, user *domain.User) (*domain.User, bool, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, search string, limit int) ([]domain.User, error)
	UpdateRole(ctx context.Context, email string, role domain.Role) (*domain.User, error)
}

type ParcelRepository interface {
	Create(ctx context.Context, parcel *domain.Parcel) error
	GetByID(ctx context.Context, id string) (*domain.Parcel, error)
	GetByTrackingID(ctx context.Context, trackingID string) (*domain.Parcel, error)
	List(ctx context.Context, filter domain.ParcelFilter) ([]domain.Parcel, error)
	// DeleteUnpaid removes the parcel only while it is unpaid.
	DeleteUnpaid(ctx context.Context, id string) error
	// MarkPaid sets the parcel paid and assigns trackingID unless the parcel
	// already carries one. A parcel that has not entered delivery yet moves
	// to pending-pickup.
	MarkPaid(ctx context.Context, id, trackingID string, at time.Time) (*domain.Parcel, error)
	AssignRider(ctx context.Context, id, riderEmail string, at time.Time) (*domain.Parcel, error)
	// UpdateDeliveryStatus moves the parcel from one status to another and
	// fails with ErrParcelStatusConflict when the current status is not from.
	UpdateDeliveryStatus(ctx context.Context, id string, from, to domain.DeliveryStatus, at time.Time) (*domain.Parcel, error)
}

type PaymentRepository interface {
	// Create fails with ErrPaymentAlreadyExists when the transaction id is
	// already recorded.
	Create(ctx context.Context, payment *domain.Payment) error
	GetByTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error)
	List(ctx context.Context, customerEmail string) ([]domain.Payment, error)
	Count(ctx context.Context, transactionID string) (int64, error)
}

type RiderRepository interface {
	Create(ctx context.Context, rider *domain.Rider) error
	GetByID(ctx context.Context, id string) (*domain.Rider, error)
	GetByEmail(ctx context.Context, email string) (*domain.Rider, error)
	List(ctx context.Context, status domain.RiderStatus) ([]domain.Rider, error)
	UpdateStatus(ctx context.Context, id string, status domain.RiderStatus, at time.Time) (*domain.Rider, error)
}

// OutboxWriter appends events that are published after the surrounding
// transaction commits.
type OutboxWriter interface {
	Append(ctx context.Context, event *outboxDomain.OutboxEvent) error
}

type Store interface {
	Users() UserRepository
	Parcels() ParcelRepository
	Payments() PaymentRepository
	Riders() RiderRepository
	Outbox() OutboxWriter

	// WithinTx runs fn against a transactional view of the store. Every write
	// made through tx commits together or not at all. Nested calls join the
	// outer transaction.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
