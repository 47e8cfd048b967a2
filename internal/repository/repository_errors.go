package repository

import "errors"

var (
	ErrUserNotFound = errors.New("user not found")

	ErrParcelNotFound       = errors.New("parcel not found")
	ErrParcelAlreadyPaid    = errors.New("parcel already paid")
	ErrParcelStatusConflict = errors.New("parcel delivery status changed concurrently")
	ErrTrackingIDTaken      = errors.New("tracking id already taken")

	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentAlreadyExists = errors.New("payment already exists")

	ErrRiderNotFound      = errors.New("rider not found")
	ErrRiderAlreadyExists = errors.New("rider already exists")
)
