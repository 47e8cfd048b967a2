package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sakib404-hub/zap-shit-server/internal/repository"
	"github.com/sakib404-hub/zap-shit-server/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newCheckoutFixture(t *testing.T) (*memory.Store, *fakeProvider, CheckoutService) {
	t.Helper()

	store := memory.NewStore()
	require.NoError(t, seedParcel(store, "P1", "alice@example.com", 19.99))

	provider := newFakeProvider()
	svc := NewCheckoutService(store.Parcels(), provider, CheckoutConfig{SiteDomain: "https://zap.example.com/"}, zap.NewNop())

	return store, provider, svc
}

func TestCreateCheckoutSession(t *testing.T) {
	_, provider, svc := newCheckoutFixture(t)

	session, err := svc.CreateCheckoutSession(context.Background(), CheckoutRequest{
		ParcelID:    "P1",
		ParcelName:  "Box",
		Cost:        19.99,
		SenderEmail: "alice@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example.com/pay/cs_test_created", session.URL)

	require.Len(t, provider.created, 1)
	params := provider.created[0]
	assert.Equal(t, int64(1999), params.AmountMinor)
	assert.Equal(t, "usd", params.Currency)
	assert.Equal(t, "P1", params.ParcelID)
	assert.Equal(t, "Box", params.ParcelName)
	assert.Equal(t, "alice@example.com", params.CustomerEmail)
	assert.Equal(t, "https://zap.example.com/dashboard/payment-success?session_id={CHECKOUT_SESSION_ID}", params.SuccessURL)
	assert.Equal(t, "https://zap.example.com/dashboard/payment-cancelled", params.CancelURL)
}

func TestCreateCheckoutSession_Rejections(t *testing.T) {
	valid := CheckoutRequest{ParcelID: "P1", ParcelName: "Box", Cost: 19.99, SenderEmail: "alice@example.com"}

	tests := []struct {
		name   string
		mutate func(r *CheckoutRequest)
		want   error
	}{
		{"zero cost", func(r *CheckoutRequest) { r.Cost = 0 }, ErrValidation},
		{"negative cost", func(r *CheckoutRequest) { r.Cost = -5 }, ErrValidation},
		{"missing parcel id", func(r *CheckoutRequest) { r.ParcelID = "" }, ErrValidation},
		{"missing email", func(r *CheckoutRequest) { r.SenderEmail = "" }, ErrValidation},
		{"cost mismatch", func(r *CheckoutRequest) { r.Cost = 1 }, ErrValidation},
		{"unknown parcel", func(r *CheckoutRequest) { r.ParcelID = "P404" }, repository.ErrParcelNotFound},
		{"another sender", func(r *CheckoutRequest) { r.SenderEmail = "mallory@example.com" }, ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, provider, svc := newCheckoutFixture(t)

			req := valid
			tt.mutate(&req)

			_, err := svc.CreateCheckoutSession(context.Background(), req)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, provider.created)
		})
	}
}

func TestCreateCheckoutSession_AlreadyPaid(t *testing.T) {
	store, _, svc := newCheckoutFixture(t)

	_, err := store.Parcels().MarkPaid(context.Background(), "P1", "ZAP-20250301-AAAAAA", seedTime)
	require.NoError(t, err)

	_, err = svc.CreateCheckoutSession(context.Background(), CheckoutRequest{
		ParcelID: "P1", ParcelName: "Box", Cost: 19.99, SenderEmail: "alice@example.com",
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCreateCheckoutSession_ProviderFailure(t *testing.T) {
	_, provider, svc := newCheckoutFixture(t)
	provider.err = errors.New("stripe down")

	_, err := svc.CreateCheckoutSession(context.Background(), CheckoutRequest{
		ParcelID: "P1", ParcelName: "Box", Cost: 19.99, SenderEmail: "alice@example.com",
	})
	assert.ErrorIs(t, err, ErrProvider)
}

func TestCreateCheckoutSession_UsesStoredParcelDetails(t *testing.T) {
	_, provider, svc := newCheckoutFixture(t)

	_, err := svc.CreateCheckoutSession(context.Background(), CheckoutRequest{
		ParcelID:    "P1",
		ParcelName:  "Something else entirely",
		Cost:        19.99,
		SenderEmail: "Alice@Example.com",
	})
	require.NoError(t, err)

	require.Len(t, provider.created, 1)
	assert.Equal(t, "Box", provider.created[0].ParcelName)
	assert.Equal(t, "alice@example.com", provider.created[0].CustomerEmail)
}
