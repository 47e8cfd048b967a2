package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/sakib404-hub/zap-shit-server/internal/domain"
	"github.com/sakib404-hub/zap-shit-server/internal/repository"
	"github.com/sakib404-hub/zap-shit-server/internal/repository/memory"
	generalDomain "github.com/sakib404-hub/zap-shit-server/pkg/domain"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type ParcelSuite struct {
	suite.Suite
	ctx     context.Context
	store   *memory.Store
	service ParcelService

	alice domain.Principal
	bob   domain.Principal
	admin domain.Principal
	rider domain.Principal
}

func TestParcelSuite(t *testing.T) {
	suite.Run(t, new(ParcelSuite))
}

func (s *ParcelSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.NewStore()
	s.service = NewParcelService(s.store, zap.NewNop(), "")

	s.alice = domain.Principal{Email: "alice@example.com", Role: domain.RoleUser}
	s.bob = domain.Principal{Email: "bob@example.com", Role: domain.RoleUser}
	s.admin = domain.Principal{Email: "admin@example.com", Role: domain.RoleAdmin}
	s.rider = domain.Principal{Email: "rider@example.com", Role: domain.RoleRider}

	s.Require().NoError(s.store.Riders().Create(s.ctx, &domain.Rider{
		ID:        "r1",
		Email:     s.rider.Email,
		Name:      "Rider",
		Status:    domain.RiderStatusActive,
		CreatedAt: time.Now(),
	}))
}

func (s *ParcelSuite) createParcel(owner domain.Principal) *domain.Parcel {
	parcel, err := s.service.Create(s.ctx, owner, &domain.Parcel{
		ParcelName: "Box",
		Cost:       120,
	})
	s.Require().NoError(err)

	return parcel
}

func (s *ParcelSuite) paidParcel(owner domain.Principal) *domain.Parcel {
	parcel := s.createParcel(owner)

	paid, err := s.store.Parcels().MarkPaid(s.ctx, parcel.ID, "ZAP-20250301-"+strings.ToUpper(parcel.ID[:6]), time.Now())
	s.Require().NoError(err)

	return paid
}

func (s *ParcelSuite) TestCreateDefaults() {
	parcel := s.createParcel(s.alice)

	s.NotEmpty(parcel.ID)
	s.Equal(s.alice.Email, parcel.SenderEmail)
	s.Equal(domain.PaymentStatusUnpaid, parcel.PaymentStatus)
	s.Equal(domain.DeliveryStatusNone, parcel.DeliveryStatus)
	s.Nil(parcel.TrackingID)
}

func (s *ParcelSuite) TestCreateValidation() {
	_, err := s.service.Create(s.ctx, s.alice, &domain.Parcel{ParcelName: "Box", Cost: 0})
	s.ErrorIs(err, ErrValidation)

	_, err = s.service.Create(s.ctx, s.alice, &domain.Parcel{Cost: 10})
	s.ErrorIs(err, ErrValidation)

	_, err = s.service.Create(s.ctx, s.alice, &domain.Parcel{ParcelName: "Box", Cost: 10, SenderEmail: s.bob.Email})
	s.ErrorIs(err, ErrForbidden)
}

func (s *ParcelSuite) TestAccessControl() {
	parcel := s.createParcel(s.alice)

	_, err := s.service.GetByID(s.ctx, s.alice, parcel.ID)
	s.NoError(err)

	_, err = s.service.GetByID(s.ctx, s.admin, parcel.ID)
	s.NoError(err)

	_, err = s.service.GetByID(s.ctx, s.bob, parcel.ID)
	s.ErrorIs(err, ErrForbidden)

	_, err = s.service.List(s.ctx, s.bob, domain.ParcelFilter{SenderEmail: s.alice.Email})
	s.ErrorIs(err, ErrForbidden)
}

func (s *ParcelSuite) TestListScopesNonAdmins() {
	s.createParcel(s.alice)
	s.createParcel(s.alice)
	s.createParcel(s.bob)

	own, err := s.service.List(s.ctx, s.alice, domain.ParcelFilter{})
	s.Require().NoError(err)
	s.Len(own, 2)

	all, err := s.service.List(s.ctx, s.admin, domain.ParcelFilter{})
	s.Require().NoError(err)
	s.Len(all, 3)
}

func (s *ParcelSuite) TestDelete() {
	unpaid := s.createParcel(s.alice)
	paid := s.paidParcel(s.alice)

	s.ErrorIs(s.service.Delete(s.ctx, s.bob, unpaid.ID), ErrForbidden)
	s.ErrorIs(s.service.Delete(s.ctx, s.alice, paid.ID), repository.ErrParcelAlreadyPaid)
	s.NoError(s.service.Delete(s.ctx, s.alice, unpaid.ID))

	_, err := s.service.GetByID(s.ctx, s.alice, unpaid.ID)
	s.ErrorIs(err, repository.ErrParcelNotFound)
}

func (s *ParcelSuite) TestTrack() {
	paid := s.paidParcel(s.alice)

	found, err := s.service.Track(s.ctx, " "+*paid.TrackingID+" ")
	s.Require().NoError(err)
	s.Equal(paid.ID, found.ID)

	_, err = s.service.Track(s.ctx, "ZAP-20250301-NOPE00")
	s.ErrorIs(err, repository.ErrParcelNotFound)
}

func (s *ParcelSuite) TestAssignRequiresPaidParcelAndActiveRider() {
	unpaid := s.createParcel(s.alice)

	_, err := s.service.AssignRider(s.ctx, unpaid.ID, s.rider.Email)
	s.ErrorIs(err, ErrConflict)

	paid := s.paidParcel(s.alice)

	_, err = s.service.AssignRider(s.ctx, paid.ID, "nobody@example.com")
	s.ErrorIs(err, repository.ErrRiderNotFound)

	s.Require().NoError(s.store.Riders().Create(s.ctx, &domain.Rider{
		ID: "r2", Email: "pending@example.com", Status: domain.RiderStatusPending,
	}))
	_, err = s.service.AssignRider(s.ctx, paid.ID, "pending@example.com")
	s.ErrorIs(err, ErrConflict)

	assigned, err := s.service.AssignRider(s.ctx, paid.ID, s.rider.Email)
	s.Require().NoError(err)
	s.Equal(domain.DeliveryStatusRiderAssigned, assigned.DeliveryStatus)
	s.True(assigned.AssignedTo(s.rider.Email))
}

func (s *ParcelSuite) TestRiderDeliveryFlow() {
	paid := s.paidParcel(s.alice)

	_, err := s.service.AssignRider(s.ctx, paid.ID, s.rider.Email)
	s.Require().NoError(err)

	other := domain.Principal{Email: "other-rider@example.com", Role: domain.RoleRider}
	_, err = s.service.UpdateDeliveryStatus(s.ctx, other, paid.ID, domain.DeliveryStatusInTransit)
	s.ErrorIs(err, ErrForbidden)

	_, err = s.service.UpdateDeliveryStatus(s.ctx, s.rider, paid.ID, domain.DeliveryStatusDelivered)
	s.ErrorIs(err, ErrValidation)

	inTransit, err := s.service.UpdateDeliveryStatus(s.ctx, s.rider, paid.ID, domain.DeliveryStatusInTransit)
	s.Require().NoError(err)
	s.Equal(domain.DeliveryStatusInTransit, inTransit.DeliveryStatus)

	delivered, err := s.service.UpdateDeliveryStatus(s.ctx, s.rider, paid.ID, domain.DeliveryStatusDelivered)
	s.Require().NoError(err)
	s.Equal(domain.DeliveryStatusDelivered, delivered.DeliveryStatus)

	assigned, err := s.service.ListAssigned(s.ctx, s.rider.Email, "")
	s.Require().NoError(err)
	s.Len(assigned, 1)

	events := s.store.OutboxEvents()
	s.Require().Len(events, 3)

	var last generalDomain.EventEnvelope[generalDomain.DeliveryStatusChangedEvent]
	s.Require().NoError(json.Unmarshal(events[2].Payload, &last))
	s.Equal(generalDomain.EventDeliveryStatusChanged, last.Event)
	s.Equal(string(domain.DeliveryStatusInTransit), last.Payload.From)
	s.Equal(string(domain.DeliveryStatusDelivered), last.Payload.To)
	s.Equal(s.alice.Email, last.Payload.SenderEmail)
	s.Equal(*paid.TrackingID, last.Payload.TrackingID)
}
