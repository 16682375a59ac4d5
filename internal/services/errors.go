package services

import "errors"

var (
	ErrIncidentNotFound = errors.New("incident not found")
	ErrTripNotFound     = errors.New("trip not found")
	ErrTripCompleted    = errors.New("trip already completed")
	ErrInvalidStatus    = errors.New("invalid trip status")
	ErrInvalidAlert     = errors.New("invalid alert")
)
