package domain

import "time"

type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
)

type DeliveryStatus string

const (
	DeliveryStatusNone          DeliveryStatus = "none"
	DeliveryStatusPendingPickup DeliveryStatus = "pending-pickup"
	DeliveryStatusRiderAssigned DeliveryStatus = "rider-assigned"
	DeliveryStatusInTransit     DeliveryStatus = "in-transit"
	DeliveryStatusDelivered     DeliveryStatus = "delivered"
)

// riderTransitions lists the moves an assigned rider may make.
var riderTransitions = map[DeliveryStatus]DeliveryStatus{
	DeliveryStatusRiderAssigned: DeliveryStatusInTransit,
	DeliveryStatusInTransit:     DeliveryStatusDelivered,
}

// CanRiderMove reports whether a rider may move a parcel from one delivery
// status to the next.
func CanRiderMove(from, to DeliveryStatus) bool {
	next, ok := riderTransitions[from]
	return ok && next == to
}

type Parcel struct {
	ID              string         `json:"_id" db:"id"`
	ParcelName      string         `json:"parcelName" db:"parcel_name"`
	ParcelType      string         `json:"parcelType" db:"parcel_type"`
	Description     string         `json:"description" db:"description"`
	Weight          float64        `json:"weight" db:"weight"`
	Cost            float64        `json:"cost" db:"cost"`
	SenderName      string         `json:"senderName" db:"sender_name"`
	SenderEmail     string         `json:"senderEmail" db:"sender_email"`
	SenderAddress   string         `json:"senderAddress" db:"sender_address"`
	ReceiverName    string         `json:"receiverName" db:"receiver_name"`
	ReceiverEmail   string         `json:"receiverEmail" db:"receiver_email"`
	ReceiverAddress string         `json:"receiverAddress" db:"receiver_address"`
	PaymentStatus   PaymentStatus  `json:"paymentStatus" db:"payment_status"`
	DeliveryStatus  DeliveryStatus `json:"deliveryStatus" db:"delivery_status"`
	TrackingID      *string        `json:"trackingId" db:"tracking_id"`
	RiderEmail      *string        `json:"riderEmail,omitempty" db:"rider_email"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

func (p *Parcel) IsPaid() bool {
	return p.PaymentStatus == PaymentStatusPaid
}

func (p *Parcel) AssignedTo(email string) bool {
	return p.RiderEmail != nil && *p.RiderEmail == email
}

// ParcelFilter narrows parcel listings. Empty fields match everything.
type ParcelFilter struct {
	SenderEmail    string
	RiderEmail     string
	PaymentStatus  PaymentStatus
	DeliveryStatus DeliveryStatus
}
