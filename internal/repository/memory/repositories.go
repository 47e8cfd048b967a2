package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/sakib404-hub/zap-shit-server/internal/domain"
	"github.com/sakib404-hub/zap-shit-server/internal/repository"
)

type userRepo struct {
	s *Store
}

func (r *userRepo) Upsert(_ context.Context, user *domain.User) (*domain.User, bool, error) {
	unlock := r.s.acquire()
	defer unlock()

	now := time.Now().UTC()

	existing, ok := r.s.data.users[user.Email]
	if ok {
		existing.LastLoginAt = now
		if user.DisplayName != "" {
			existing.DisplayName = user.DisplayName
		}
		if user.PhotoURL != "" {
			existing.PhotoURL = user.PhotoURL
		}
		r.s.data.users[existing.Email] = existing

		return &existing, false, nil
	}

	created := *user
	created.CreatedAt = now
	created.LastLoginAt = now
	r.s.data.users[user.Email] = created

	return &created, true, nil
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	unlock := r.s.acquire()
	defer unlock()

	u, ok := r.s.data.users[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}

	return &u, nil
}

func (r *userRepo) List(_ context.Context, search string, limit int) ([]domain.User, error) {
	unlock := r.s.acquire()
	defer unlock()

	search = strings.ToLower(search)

	result := make([]domain.User, 0)
	for _, u := range r.s.data.users {
		if search == "" ||
			strings.Contains(strings.ToLower(u.Email), search) ||
			strings.Contains(strings.ToLower(u.DisplayName), search) {
			result = append(result, u)
		}
	}

	slices.SortFunc(result, func(a, b domain.User) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

func (r *userRepo) UpdateRole(_ context.Context, email string, role domain.Role) (*domain.User, error) {
	unlock := r.s.acquire()
	defer unlock()

	u, ok := r.s.data.users[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}

	u.Role = role
	r.s.data.users[u.Email] = u

	return &u, nil
}

type parcelRepo struct {
	s *Store
}

func (r *parcelRepo) Create(_ context.Context, parcel *domain.Parcel) error {
	unlock := r.s.acquire()
	defer unlock()

	parcel.UpdatedAt = parcel.CreatedAt
	r.s.data.parcels[parcel.ID] = *parcel

	return nil
}

func (r *parcelRepo) GetByID(_ context.Context, id string) (*domain.Parcel, error) {
	unlock := r.s.acquire()
	defer unlock()

	p, ok := r.s.data.parcels[id]
	if !ok {
		return nil, repository.ErrParcelNotFound
	}

	return &p, nil
}

func (r *parcelRepo) GetByTrackingID(_ context.Context, trackingID string) (*domain.Parcel, error) {
	unlock := r.s.acquire()
	defer unlock()

	id, ok := r.s.data.trackingIDs[trackingID]
	if !ok {
		return nil, repository.ErrParcelNotFound
	}

	p := r.s.data.parcels[id]

	return &p, nil
}

func (r *parcelRepo) List(_ context.Context, filter domain.ParcelFilter) ([]domain.Parcel, error) {
	unlock := r.s.acquire()
	defer unlock()

	result := make([]domain.Parcel, 0)
	for _, p := range r.s.data.parcels {
		if filter.SenderEmail != "" && p.SenderEmail != filter.SenderEmail {
			continue
		}
		if filter.RiderEmail != "" && !p.AssignedTo(filter.RiderEmail) {
			continue
		}
		if filter.PaymentStatus != "" && p.PaymentStatus != filter.PaymentStatus {
			continue
		}
		if filter.DeliveryStatus != "" && p.DeliveryStatus != filter.DeliveryStatus {
			continue
		}

		result = append(result, p)
	}

	slices.SortFunc(result, func(a, b domain.Parcel) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), strings.Compare(a.ID, b.ID))
	})

	return result, nil
}

func (r *parcelRepo) DeleteUnpaid(_ context.Context, id string) error {
	unlock := r.s.acquire()
	defer unlock()

	p, ok := r.s.data.parcels[id]
	if !ok {
		return repository.ErrParcelNotFound
	}
	if p.IsPaid() {
		return repository.ErrParcelAlreadyPaid
	}

	delete(r.s.data.parcels, id)

	return nil
}

func (r *parcelRepo) MarkPaid(_ context.Context, id, trackingID string, at time.Time) (*domain.Parcel, error) {
	unlock := r.s.acquire()
	defer unlock()

	p, ok := r.s.data.parcels[id]
	if !ok {
		return nil, repository.ErrParcelNotFound
	}

	if p.TrackingID == nil {
		if owner, taken := r.s.data.trackingIDs[trackingID]; taken && owner != id {
			return nil, repository.ErrTrackingIDTaken
		}

		owned := strings.Clone(trackingID)
		p.TrackingID = &owned
		r.s.data.trackingIDs[owned] = p.ID
	}

	p.PaymentStatus = domain.PaymentStatusPaid
	if p.DeliveryStatus == domain.DeliveryStatusNone {
		p.DeliveryStatus = domain.DeliveryStatusPendingPickup
	}
	p.UpdatedAt = at
	r.s.data.parcels[p.ID] = p

	return &p, nil
}

func (r *parcelRepo) AssignRider(_ context.Context, id, riderEmail string, at time.Time) (*domain.Parcel, error) {
	unlock := r.s.acquire()
	defer unlock()

	p, ok := r.s.data.parcels[id]
	if !ok {
		return nil, repository.ErrParcelNotFound
	}
	if !p.IsPaid() || p.DeliveryStatus != domain.DeliveryStatusPendingPickup {
		return nil, repository.ErrParcelStatusConflict
	}

	owned := strings.Clone(riderEmail)
	p.RiderEmail = &owned
	p.DeliveryStatus = domain.DeliveryStatusRiderAssigned
	p.UpdatedAt = at
	r.s.data.parcels[p.ID] = p

	return &p, nil
}

func (r *parcelRepo) UpdateDeliveryStatus(
	_ context.Context,
	id string,
	from, to domain.DeliveryStatus,
	at time.Time,
) (*domain.Parcel, error) {
	unlock := r.s.acquire()
	defer unlock()

	p, ok := r.s.data.parcels[id]
	if !ok {
		return nil, repository.ErrParcelNotFound
	}
	if p.DeliveryStatus != from {
		return nil, repository.ErrParcelStatusConflict
	}

	p.DeliveryStatus = to
	p.UpdatedAt = at
	r.s.data.parcels[p.ID] = p

	return &p, nil
}

type paymentRepo struct {
	s *Store
}

func (r *paymentRepo) Create(_ context.Context, payment *domain.Payment) error {
	unlock := r.s.acquire()
	defer unlock()

	if _, ok := r.s.data.payments[payment.TransactionID]; ok {
		return repository.ErrPaymentAlreadyExists
	}

	r.s.data.payments[payment.TransactionID] = *payment

	return nil
}

func (r *paymentRepo) GetByTransactionID(_ context.Context, transactionID string) (*domain.Payment, error) {
	unlock := r.s.acquire()
	defer unlock()

	p, ok := r.s.data.payments[transactionID]
	if !ok {
		return nil, repository.ErrPaymentNotFound
	}

	return &p, nil
}

func (r *paymentRepo) List(_ context.Context, customerEmail string) ([]domain.Payment, error) {
	unlock := r.s.acquire()
	defer unlock()

	result := make([]domain.Payment, 0)
	for _, p := range r.s.data.payments {
		if customerEmail == "" || p.CustomerEmail == customerEmail {
			result = append(result, p)
		}
	}

	slices.SortFunc(result, func(a, b domain.Payment) int {
		return cmp.Or(b.PaidAt.Compare(a.PaidAt), strings.Compare(a.TransactionID, b.TransactionID))
	})

	return result, nil
}

func (r *paymentRepo) Count(_ context.Context, transactionID string) (int64, error) {
	unlock := r.s.acquire()
	defer unlock()

	if _, ok := r.s.data.payments[transactionID]; ok {
		return 1, nil
	}

	return 0, nil
}

type riderRepo struct {
	s *Store
}

func (r *riderRepo) Create(_ context.Context, rider *domain.Rider) error {
	unlock := r.s.acquire()
	defer unlock()

	if _, ok := r.s.data.riderEmails[rider.Email]; ok {
		return repository.ErrRiderAlreadyExists
	}

	rider.UpdatedAt = rider.CreatedAt
	r.s.data.riders[rider.ID] = *rider
	r.s.data.riderEmails[rider.Email] = rider.ID

	return nil
}

func (r *riderRepo) GetByID(_ context.Context, id string) (*domain.Rider, error) {
	unlock := r.s.acquire()
	defer unlock()

	rd, ok := r.s.data.riders[id]
	if !ok {
		return nil, repository.ErrRiderNotFound
	}

	return &rd, nil
}

func (r *riderRepo) GetByEmail(_ context.Context, email string) (*domain.Rider, error) {
	unlock := r.s.acquire()
	defer unlock()

	id, ok := r.s.data.riderEmails[email]
	if !ok {
		return nil, repository.ErrRiderNotFound
	}

	rd := r.s.data.riders[id]

	return &rd, nil
}

func (r *riderRepo) List(_ context.Context, status domain.RiderStatus) ([]domain.Rider, error) {
	unlock := r.s.acquire()
	defer unlock()

	result := make([]domain.Rider, 0)
	for _, rd := range r.s.data.riders {
		if status == "" || rd.Status == status {
			result = append(result, rd)
		}
	}

	slices.SortFunc(result, func(a, b domain.Rider) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), strings.Compare(a.ID, b.ID))
	})

	return result, nil
}

func (r *riderRepo) UpdateStatus(_ context.Context, id string, status domain.RiderStatus, at time.Time) (*domain.Rider, error) {
	unlock := r.s.acquire()
	defer unlock()

	rd, ok := r.s.data.riders[id]
	if !ok {
		return nil, repository.ErrRiderNotFound
	}

	rd.Status = status
	rd.UpdatedAt = at
	r.s.data.riders[rd.ID] = rd

	return &rd, nil
}
