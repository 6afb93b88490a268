/*
Package distance computes straight-line distances between stores.

PURPOSE:
  Distance-priced fees (one-way relocation, cross-store returns) are charged
  per kilometre of great-circle distance between the pickup and return
  stores. Road networks are not modelled.

KEY CONCEPTS:
  - Distance: haversine over a 6371 km sphere, rounded to 2 decimals
  - Service: owns the cache; construct once per process and inject it
  - Registry: immutable store-id -> coordinate snapshot

USAGE:
  svc := distance.NewService(distance.NewMemoryCache())
  r, err := svc.StoreDistance(pickupID, returnID, registry)

SEE ALSO:
  - cache.go: Cache interface and in-memory implementation
  - rediscache/: Redis-backed tier shared between instances
  - allocation/engine.go: distance-priced fees
*/
package distance

import (
	"fmt"
	"math"
	"strconv"

	"github.com/warp/fleet-pricing/generic"
)

const earthRadiusKm = 6371.0

// Result is a rounded distance with a display string.
type Result struct {
	Km            float64 `json:"km"`
	HumanReadable string  `json:"human_readable"`
}

// Distance returns the great-circle distance between a and b.
func Distance(a, b Coordinate) (Result, error) {
	if err := a.validate(); err != nil {
		return Result{}, err
	}
	if err := b.validate(); err != nil {
		return Result{}, err
	}
	if a == b {
		return zeroResult(), nil
	}

	km := generic.RoundKm(haversineKm(a.Latitude, a.Longitude, b.Latitude, b.Longitude))
	return Result{Km: km, HumanReadable: humanReadable(km)}, nil
}

func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLng := degreesToRadians(lng2 - lng1)

	rLat1 := degreesToRadians(lat1)
	rLat2 := degreesToRadians(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func humanReadable(km float64) string {
	if km == 0 {
		return "0 km"
	}
	if km < 1 {
		return fmt.Sprintf("%d m", int(math.Round(km*1000)))
	}
	return strconv.FormatFloat(km, 'f', 2, 64) + " km"
}

func zeroResult() Result {
	return Result{Km: 0, HumanReadable: humanReadable(0)}
}

// =============================================================================
// SERVICE - Cached distance lookups
// =============================================================================

// Observer is notified of cache outcomes. metrics.Recorder implements it.
type Observer interface {
	DistanceCacheHit()
	DistanceCacheMiss()
}

type noopObserver struct{}

func (noopObserver) DistanceCacheHit()  {}
func (noopObserver) DistanceCacheMiss() {}

// Service memoizes Distance. It is safe for concurrent use as long as its
// Cache is.
type Service struct {
	cache    Cache
	observer Observer
}

type Option func(*Service)

// WithObserver reports cache hits and misses.
func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.observer = o
		}
	}
}

// NewService creates a service around cache. A nil cache gets a fresh
// MemoryCache.
func NewService(cache Cache, opts ...Option) *Service {
	if cache == nil {
		cache = NewMemoryCache()
	}
	s := &Service{cache: cache, observer: noopObserver{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cache exposes the underlying cache (tests reset it between cases).
func (s *Service) Cache() Cache { return s.cache }

// Cached returns Distance(a, b), consulting the cache first. Coordinates that
// agree to 6 decimals share an entry in either order.
func (s *Service) Cached(a, b Coordinate) (Result, error) {
	key := cacheKey(a, b)
	if r, ok := s.cache.Get(key); ok {
		s.observer.DistanceCacheHit()
		return r, nil
	}
	s.observer.DistanceCacheMiss()

	r, err := Distance(a, b)
	if err != nil {
		return Result{}, err
	}
	s.cache.Set(key, r)
	return r, nil
}

// StoreDistance returns the distance between two stores. Equal ids return
// zero without touching the registry.
func (s *Service) StoreDistance(idA, idB generic.StoreID, registry Registry) (Result, error) {
	if idA == idB {
		return zeroResult(), nil
	}
	a, ok := registry.StoreCoordinate(idA)
	if !ok {
		return Result{}, &StoreNotFoundError{StoreID: idA}
	}
	b, ok := registry.StoreCoordinate(idB)
	if !ok {
		return Result{}, &StoreNotFoundError{StoreID: idB}
	}
	return s.Cached(a, b)
}

// Pair is an ordered store pair used as a matrix key.
type Pair struct {
	From generic.StoreID
	To   generic.StoreID
}

// Matrix computes every unordered pair of ids once and records the result
// under both orderings. The diagonal is not included, even when ids repeats.
func (s *Service) Matrix(ids []generic.StoreID, registry Registry) (map[Pair]Result, error) {
	matrix := make(map[Pair]Result, len(ids)*len(ids))
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			from, to := ids[i], ids[j]
			if from == to {
				continue
			}
			if _, done := matrix[Pair{From: from, To: to}]; done {
				continue
			}
			r, err := s.StoreDistance(from, to, registry)
			if err != nil {
				return nil, fmt.Errorf("distance %d -> %d: %w", from, to, err)
			}
			matrix[Pair{From: from, To: to}] = r
			matrix[Pair{From: to, To: from}] = r
		}
	}
	return matrix, nil
}
