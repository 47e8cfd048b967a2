package domain

import (
	"math"
	"time"
)

type Payment struct {
	ID            string    `json:"_id" db:"id"`
	TransactionID string    `json:"transactionId" db:"transaction_id"`
	ParcelID      string    `json:"parcelId" db:"parcel_id"`
	CustomerEmail string    `json:"customerEmail" db:"customer_email"`
	Amount        float64   `json:"amount" db:"-"`
	AmountMinor   int64     `json:"amountMinor" db:"amount_minor"`
	Currency      string    `json:"currency" db:"currency"`
	Status        string    `json:"paymentStatus" db:"status"`
	TrackingID    string    `json:"trackingId" db:"tracking_id"`
	PaidAt        time.Time `json:"paidAt" db:"paid_at"`
}

// FromMinorUnits converts a provider amount such as cents to currency units.
func FromMinorUnits(minor int64) float64 {
	return float64(minor) / 100
}

// ToMinorUnits rounds half away from zero.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
