package distance

import (
	"context"
	"errors"
	"fmt"

	"github.com/warp/fleet-pricing/generic"
)

// Registry resolves store coordinates from an immutable snapshot. Lookups
// never block; callers build the snapshot up front (see LoadRegistry).
type Registry interface {
	StoreCoordinate(id generic.StoreID) (Coordinate, bool)
}

// StaticRegistry is a map-backed Registry.
type StaticRegistry map[generic.StoreID]Coordinate

func (r StaticRegistry) StoreCoordinate(id generic.StoreID) (Coordinate, bool) {
	c, ok := r[id]
	return c, ok
}

// StoreRepository is the persistent source of store coordinates.
// Implementations return an error wrapping generic.ErrStoreNotFound for
// unknown ids.
type StoreRepository interface {
	GetStoreCoordinate(ctx context.Context, id generic.StoreID) (Coordinate, error)
}

// LoadRegistry snapshots the coordinates of the given stores. Unknown ids are
// left out so the engine reports them as StoreNotFound at the point of use.
func LoadRegistry(ctx context.Context, repo StoreRepository, ids ...generic.StoreID) (StaticRegistry, error) {
	reg := make(StaticRegistry, len(ids))
	for _, id := range ids {
		if _, ok := reg[id]; ok {
			continue
		}
		c, err := repo.GetStoreCoordinate(ctx, id)
		if err != nil {
			if errors.Is(err, generic.ErrStoreNotFound) {
				continue
			}
			return nil, fmt.Errorf("load store %d: %w", id, err)
		}
		reg[id] = c
	}
	return reg, nil
}
