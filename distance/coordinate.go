package distance

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Coordinate is a WGS84 point in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the coordinate is within latitude [-90, 90] and
// longitude [-180, 180].
func (c Coordinate) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

func (c Coordinate) validate() error {
	if !c.Valid() {
		return &InvalidCoordinateError{Coordinate: c}
	}
	return nil
}

// String rounds to 6 dp, so points a few centimetres apart print (and
// cache) the same.
func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", round6(c.Latitude), round6(c.Longitude))
}

func round6(x float64) float64 {
	r := math.Round(x*1e6) / 1e6
	if r == 0 {
		return 0 // folds -0 into 0
	}
	return r
}

// cacheKey is order independent: (a, b) and (b, a) produce the same key.
func cacheKey(a, b Coordinate) string {
	parts := []string{a.String(), b.String()}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}
