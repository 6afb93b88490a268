package distance

import (
	"fmt"

	"github.com/warp/fleet-pricing/generic"
)

// InvalidCoordinateError carries the out-of-range coordinate.
type InvalidCoordinateError struct {
	Coordinate Coordinate
}

func (e *InvalidCoordinateError) Error() string {
	return fmt.Sprintf("invalid coordinate: latitude %v, longitude %v", e.Coordinate.Latitude, e.Coordinate.Longitude)
}

func (e *InvalidCoordinateError) Unwrap() error {
	return generic.ErrInvalidCoordinate
}

// StoreNotFoundError names the store id that could not be resolved.
type StoreNotFoundError struct {
	StoreID generic.StoreID
}

func (e *StoreNotFoundError) Error() string {
	return fmt.Sprintf("store not found: %d", e.StoreID)
}

func (e *StoreNotFoundError) Unwrap() error {
	return generic.ErrStoreNotFound
}
