package postgres_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sakib404-hub/zap-shit-server/internal/domain"
	"github.com/sakib404-hub/zap-shit-server/internal/repository"
	"github.com/sakib404-hub/zap-shit-server/internal/service"
	"github.com/sakib404-hub/zap-shit-server/pkg/kafka"
	"github.com/sakib404-hub/zap-shit-server/pkg/outbox/worker"
	"go.uber.org/zap"
)

var seedTime = time.Date(2025, 2, 28, 10, 0, 0, 0, time.UTC)

func (s *IntegrationTestSuite) seedParcel(id string) {
	s.Require().NoError(s.Store.Parcels().Create(s.Ctx, &domain.Parcel{
		ID:             id,
		ParcelName:     "Box",
		Cost:           2500,
		SenderEmail:    "alice@example.com",
		PaymentStatus:  domain.PaymentStatusUnpaid,
		DeliveryStatus: domain.DeliveryStatusNone,
		CreatedAt:      seedTime,
	}))
}

func (s *IntegrationTestSuite) paidSession(id, intent, parcelID string) {
	s.Provider.add(domain.SessionOutcome{
		ID:              id,
		PaymentStatus:   "paid",
		PaymentIntentID: intent,
		AmountTotal:     250000,
		Currency:        "usd",
		CustomerEmail:   "alice@example.com",
		Metadata: map[string]string{
			domain.MetadataParcelID:   parcelID,
			domain.MetadataParcelName: "Box",
		},
	})
}

func (s *IntegrationTestSuite) countRows(query string, args ...any) int64 {
	var n int64
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, query, args...).Scan(&n))

	return n
}

func (s *IntegrationTestSuite) TestReconcile_SettlesParcelOnce() {
	s.seedParcel("P1")
	s.paidSession("cs_1", "pi_1", "P1")

	reconciler := service.NewReconcileService(s.Store, s.Provider, zap.NewNop())

	res, err := reconciler.Reconcile(s.Ctx, "cs_1")
	s.Require().NoError(err)
	s.Require().True(res.Success)
	s.Require().False(res.AlreadyProcessed)

	var (
		paymentStatus  string
		deliveryStatus string
		trackingID     *string
	)
	err = s.DbPool.QueryRow(s.Ctx, `
		SELECT payment_status, delivery_status, tracking_id
		FROM parcels
		WHERE id = $1
	`, "P1").Scan(&paymentStatus, &deliveryStatus, &trackingID)
	s.Require().NoError(err)
	s.Equal("paid", paymentStatus)
	s.Equal("pending-pickup", deliveryStatus)
	s.Require().NotNil(trackingID)
	s.Equal(res.TrackingID, *trackingID)

	var (
		amountMinor int64
		currency    string
	)
	err = s.DbPool.QueryRow(s.Ctx, `
		SELECT amount_minor, currency
		FROM payments
		WHERE transaction_id = $1
	`, "pi_1").Scan(&amountMinor, &currency)
	s.Require().NoError(err)
	s.Equal(int64(250000), amountMinor)
	s.Equal("usd", currency)

	payment, err := s.Store.Payments().GetByTransactionID(s.Ctx, "pi_1")
	s.Require().NoError(err)
	s.Equal(2500.0, payment.Amount)

	again, err := reconciler.Reconcile(s.Ctx, "cs_1")
	s.Require().NoError(err)
	s.True(again.AlreadyProcessed)
	s.Equal(res.TrackingID, again.TrackingID)

	s.Equal(int64(1), s.countRows(`SELECT COUNT(*) FROM payments WHERE transaction_id = $1`, "pi_1"))
	s.Equal(int64(1), s.countRows(`SELECT COUNT(*) FROM outbox WHERE aggregate_id = $1 AND event_type = 'ParcelPaid'`, "P1"))
}

func (s *IntegrationTestSuite) TestReconcile_ConcurrentCallsRecordOnePayment() {
	s.seedParcel("P1")
	s.paidSession("cs_1", "pi_1", "P1")

	reconciler := service.NewReconcileService(s.Store, s.Provider, zap.NewNop())

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)

	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			res, err := reconciler.Reconcile(s.Ctx, "cs_1")
			if err == nil && !res.Success {
				err = errors.New("reconcile reported no success")
			}
			errs <- err
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		s.NoError(err)
	}

	s.Equal(int64(1), s.countRows(`SELECT COUNT(*) FROM payments WHERE transaction_id = $1`, "pi_1"))
	s.Equal(int64(1), s.countRows(`SELECT COUNT(*) FROM outbox WHERE event_type = 'ParcelPaid'`))
}

func (s *IntegrationTestSuite) TestWithinTx_RollsBackEveryWrite() {
	s.seedParcel("P1")
	boom := errors.New("boom")

	err := s.Store.WithinTx(s.Ctx, func(ctx context.Context, tx repository.Store) error {
		if _, err := tx.Parcels().MarkPaid(ctx, "P1", "ZAP-20250228-AAAAAA", seedTime); err != nil {
			return err
		}

		if err := tx.Payments().Create(ctx, &domain.Payment{
			ID:            "pay-1",
			TransactionID: "pi_1",
			ParcelID:      "P1",
			AmountMinor:   250000,
			Currency:      "usd",
			Status:        "paid",
			TrackingID:    "ZAP-20250228-AAAAAA",
			PaidAt:        seedTime,
		}); err != nil {
			return err
		}

		return boom
	})
	s.Require().ErrorIs(err, boom)

	parcel, err := s.Store.Parcels().GetByID(s.Ctx, "P1")
	s.Require().NoError(err)
	s.Equal(domain.PaymentStatusUnpaid, parcel.PaymentStatus)
	s.Nil(parcel.TrackingID)

	_, err = s.Store.Payments().GetByTransactionID(s.Ctx, "pi_1")
	s.ErrorIs(err, repository.ErrPaymentNotFound)
}

func (s *IntegrationTestSuite) TestMarkPaid_TrackingIDUniqueAndKept() {
	s.seedParcel("P1")
	s.seedParcel("P2")

	first, err := s.Store.Parcels().MarkPaid(s.Ctx, "P1", "ZAP-20250228-AAAAAA", seedTime)
	s.Require().NoError(err)
	s.Equal("ZAP-20250228-AAAAAA", *first.TrackingID)

	again, err := s.Store.Parcels().MarkPaid(s.Ctx, "P1", "ZAP-20250228-BBBBBB", seedTime)
	s.Require().NoError(err)
	s.Equal("ZAP-20250228-AAAAAA", *again.TrackingID)

	_, err = s.Store.Parcels().MarkPaid(s.Ctx, "P2", "ZAP-20250228-AAAAAA", seedTime)
	s.ErrorIs(err, repository.ErrTrackingIDTaken)

	_, err = s.Store.Parcels().MarkPaid(s.Ctx, "missing", "ZAP-20250228-CCCCCC", seedTime)
	s.ErrorIs(err, repository.ErrParcelNotFound)
}

func (s *IntegrationTestSuite) TestPayments_DuplicateTransaction() {
	s.seedParcel("P1")

	payment := &domain.Payment{
		ID:            "pay-1",
		TransactionID: "pi_1",
		ParcelID:      "P1",
		AmountMinor:   250000,
		Currency:      "usd",
		Status:        "paid",
		PaidAt:        seedTime,
	}
	s.Require().NoError(s.Store.Payments().Create(s.Ctx, payment))

	payment.ID = "pay-2"
	s.ErrorIs(s.Store.Payments().Create(s.Ctx, payment), repository.ErrPaymentAlreadyExists)
}

func (s *IntegrationTestSuite) TestDeleteUnpaid() {
	s.seedParcel("P1")
	s.seedParcel("P2")

	_, err := s.Store.Parcels().MarkPaid(s.Ctx, "P2", "ZAP-20250228-AAAAAA", seedTime)
	s.Require().NoError(err)

	s.NoError(s.Store.Parcels().DeleteUnpaid(s.Ctx, "P1"))
	s.ErrorIs(s.Store.Parcels().DeleteUnpaid(s.Ctx, "P1"), repository.ErrParcelNotFound)
	s.ErrorIs(s.Store.Parcels().DeleteUnpaid(s.Ctx, "P2"), repository.ErrParcelAlreadyPaid)
}

func (s *IntegrationTestSuite) TestDeliveryTransitions() {
	s.seedParcel("P1")

	_, err := s.Store.Parcels().AssignRider(s.Ctx, "P1", "rider@example.com", seedTime)
	s.ErrorIs(err, repository.ErrParcelStatusConflict)

	_, err = s.Store.Parcels().MarkPaid(s.Ctx, "P1", "ZAP-20250228-AAAAAA", seedTime)
	s.Require().NoError(err)

	parcel, err := s.Store.Parcels().AssignRider(s.Ctx, "P1", "rider@example.com", seedTime)
	s.Require().NoError(err)
	s.Equal(domain.DeliveryStatusRiderAssigned, parcel.DeliveryStatus)

	_, err = s.Store.Parcels().UpdateDeliveryStatus(s.Ctx, "P1", domain.DeliveryStatusInTransit, domain.DeliveryStatusDelivered, seedTime)
	s.ErrorIs(err, repository.ErrParcelStatusConflict)

	parcel, err = s.Store.Parcels().UpdateDeliveryStatus(s.Ctx, "P1", domain.DeliveryStatusRiderAssigned, domain.DeliveryStatusInTransit, seedTime)
	s.Require().NoError(err)
	s.Equal(domain.DeliveryStatusInTransit, parcel.DeliveryStatus)

	assigned, err := s.Store.Parcels().List(s.Ctx, domain.ParcelFilter{RiderEmail: "rider@example.com"})
	s.Require().NoError(err)
	s.Len(assigned, 1)
}

func (s *IntegrationTestSuite) TestUsersAndRiders() {
	user, created, err := s.Store.Users().Upsert(s.Ctx, &domain.User{Email: "bob@example.com", Role: domain.RoleUser})
	s.Require().NoError(err)
	s.True(created)
	s.Equal(domain.RoleUser, user.Role)

	_, err = s.Store.Users().UpdateRole(s.Ctx, "bob@example.com", domain.RoleAdmin)
	s.Require().NoError(err)

	user, created, err = s.Store.Users().Upsert(s.Ctx, &domain.User{Email: "bob@example.com", Role: domain.RoleUser})
	s.Require().NoError(err)
	s.False(created)
	s.Equal(domain.RoleAdmin, user.Role)

	rider := &domain.Rider{ID: "r1", Email: "bob@example.com", Name: "Bob", Status: domain.RiderStatusPending, CreatedAt: seedTime}
	s.Require().NoError(s.Store.Riders().Create(s.Ctx, rider))

	rider.ID = "r2"
	s.ErrorIs(s.Store.Riders().Create(s.Ctx, rider), repository.ErrRiderAlreadyExists)

	updated, err := s.Store.Riders().UpdateStatus(s.Ctx, "r1", domain.RiderStatusActive, seedTime)
	s.Require().NoError(err)
	s.Equal(domain.RiderStatusActive, updated.Status)
}

func (s *IntegrationTestSuite) TestOutboxEventsArePublished() {
	s.seedParcel("P1")
	s.paidSession("cs_1", "pi_1", "P1")

	_, err := service.NewReconcileService(s.Store, s.Provider, zap.NewNop()).Reconcile(s.Ctx, "cs_1")
	s.Require().NoError(err)

	producer, err := kafka.NewProducer(s.KafkaBrokers, zap.NewNop())
	s.Require().NoError(err)
	defer func() {
		_ = producer.Close()
	}()

	processor := worker.NewOutboxProcessor(s.DbPool, s.OutboxRepo, producer, zap.NewNop())

	s.Require().Eventually(func() bool {
		published, err := processor.ProcessBatch(s.Ctx)
		return err == nil && published == 1
	}, 30*time.Second, 500*time.Millisecond)

	s.Equal(int64(0), s.countRows(`SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`))
}

func (s *IntegrationTestSuite) TestDeduplicationRunsActionOnce() {
	dedup := service.NewPostgresDeduplicator(s.DbPool, zap.NewNop())

	calls := 0
	action := func() error {
		calls++
		return nil
	}

	s.Require().NoError(dedup(s.Ctx, "notification", 42, action))
	s.Require().NoError(dedup(s.Ctx, "notification", 42, action))
	s.Require().NoError(dedup(s.Ctx, "audit", 42, action))

	s.Equal(2, calls)
}

func (s *IntegrationTestSuite) TestCachedUserLookupsAreInvalidated() {
	users := service.NewCachedUserService(service.NewUserService(s.Store.Users(), zap.NewNop()), s.RedisClient, time.Minute, zap.NewNop())

	_, _, err := users.Register(s.Ctx, &domain.User{Email: "carol@example.com"})
	s.Require().NoError(err)

	user, err := users.GetByEmail(s.Ctx, "carol@example.com")
	s.Require().NoError(err)
	s.Equal(domain.RoleUser, user.Role)

	_, err = s.DbPool.Exec(s.Ctx, `UPDATE users SET role = 'admin' WHERE email = $1`, "carol@example.com")
	s.Require().NoError(err)

	cached, err := users.GetByEmail(s.Ctx, "carol@example.com")
	s.Require().NoError(err)
	s.Equal(domain.RoleUser, cached.Role)

	_, err = users.UpdateRole(s.Ctx, "carol@example.com", domain.RoleRider)
	s.Require().NoError(err)

	fresh, err := users.GetByEmail(s.Ctx, "carol@example.com")
	s.Require().NoError(err)
	s.Equal(domain.RoleRider, fresh.Role)
}
