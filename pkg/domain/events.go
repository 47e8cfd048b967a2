package domain

import "time"

const (
	EventParcelPaid            = "ParcelPaid"
	EventDeliveryStatusChanged = "DeliveryStatusChanged"
)

// EventEnvelope is the wire shape published to kafka. EventID is filled in
// by the outbox worker with the outbox row id and is the deduplication key
// on the consumer side.
type EventEnvelope[T any] struct {
	Event   string `json:"event"`
	Payload T      `json:"payload"`
	EventID int64  `json:"event_id,omitempty"`
}

type ParcelPaidEvent struct {
	ParcelID      string    `json:"parcel_id"`
	ParcelName    string    `json:"parcel_name"`
	SenderEmail   string    `json:"sender_email"`
	TrackingID    string    `json:"tracking_id"`
	TransactionID string    `json:"transaction_id"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	PaidAt        time.Time `json:"paid_at"`
}

type DeliveryStatusChangedEvent struct {
	ParcelID    string    `json:"parcel_id"`
	SenderEmail string    `json:"sender_email"`
	TrackingID  string    `json:"tracking_id"`
	RiderEmail  string    `json:"rider_email,omitempty"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	ChangedAt   time.Time `json:"changed_at"`
}
