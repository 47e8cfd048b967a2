package domain

import "time"

type RiderStatus string

const (
	RiderStatusPending  RiderStatus = "pending"
	RiderStatusActive   RiderStatus = "active"
	RiderStatusRejected RiderStatus = "rejected"
)

func (s RiderStatus) Valid() bool {
	switch s {
	case RiderStatusPending, RiderStatusActive, RiderStatusRejected:
		return true
	}

	return false
}

type Rider struct {
	ID        string      `json:"_id" db:"id"`
	Email     string      `json:"email" db:"email"`
	Name      string      `json:"name" db:"name"`
	Phone     string      `json:"phone" db:"phone"`
	Region    string      `json:"region" db:"region"`
	District  string      `json:"district" db:"district"`
	NID       string      `json:"nid" db:"nid"`
	BikeBrand string      `json:"bikeBrand" db:"bike_brand"`
	BikeReg   string      `json:"bikeRegistration" db:"bike_reg"`
	Status    RiderStatus `json:"status" db:"status"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
