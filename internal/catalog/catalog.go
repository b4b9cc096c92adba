// Package catalog loads the purchasable packages and tracks the selection.
package catalog

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/mtecstake/autostake/internal/logging"
	"github.com/mtecstake/autostake/internal/session"
	"github.com/mtecstake/autostake/internal/util"
	"github.com/mtecstake/autostake/pkg/types"
)

// Catalog caches the package list of one load cycle. The cache is advisory:
// purchases re-check the package they are given.
type Catalog struct {
	mu       sync.RWMutex
	packages []types.Package
	selected int // position in packages, -1 when empty
	loadedAt time.Time
	gens     util.Generations
}

// New creates an empty catalog
func New() *Catalog {
	return &Catalog{selected: -1}
}

// Load reads packageCount then every package in order and replaces the
// cache wholesale. A failed read keeps the previous cache, and a load that
// an invalidation overtook is dropped with ErrLoadSuperseded.
func (c *Catalog) Load(ctx context.Context, sess *session.Session) ([]types.Package, error) {
	if sess == nil {
		return nil, types.ErrNoSession
	}

	c.mu.Lock()
	gen := c.gens.Begin()
	c.mu.Unlock()

	count, err := sess.Contract.PackageCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	if err := types.CheckCount("package count", count); err != nil {
		return nil, err
	}

	packages := make([]types.Package, 0, count)
	for i := uint64(0); i < count; i++ {
		p, err := sess.Contract.GetPackage(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("failed to load package %d: %w", i, err)
		}
		p.ID = i
		packages = append(packages, *p)
	}

	c.mu.Lock()
	switch c.gens.Commit(gen) {
	case util.GenInvalidated:
		c.mu.Unlock()
		logging.Debug("discarding catalog load of an invalidated session", logging.Component("catalog"), "generation", gen)
		return nil, types.ErrLoadSuperseded
	case util.GenOvertaken:
		packages = clonePackages(c.packages)
	default:
		c.packages = packages
		c.selected = defaultSelection(packages)
		c.loadedAt = time.Now()
	}
	c.mu.Unlock()

	logging.Debug("catalog loaded", logging.Component("catalog"), "packages", len(packages))

	if len(packages) == 0 {
		return nil, types.ErrCatalogEmpty
	}
	return clonePackages(packages), nil
}

// defaultSelection picks the first active package, else the first package
func defaultSelection(packages []types.Package) int {
	if len(packages) == 0 {
		return -1
	}
	for i, p := range packages {
		if p.Active {
			return i
		}
	}
	return 0
}

// Packages returns a copy of the cached packages
func (c *Catalog) Packages() []types.Package {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return clonePackages(c.packages)
}

// Get returns the cached package with id, or nil, false
func (c *Catalog) Get(id uint64) (*types.Package, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.packages {
		if c.packages[i].ID == id {
			p := clonePackage(c.packages[i])
			return &p, true
		}
	}
	return nil, false
}

// Selected returns the selected package, or nil, false on an empty catalog
func (c *Catalog) Selected() (*types.Package, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.selected < 0 || c.selected >= len(c.packages) {
		return nil, false
	}
	p := clonePackage(c.packages[c.selected])
	return &p, true
}

// Select changes the selection to id
func (c *Catalog) Select(id uint64) (*types.Package, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.packages {
		if c.packages[i].ID == id {
			c.selected = i
			p := clonePackage(c.packages[i])
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%w: package %d", types.ErrInvalidPackageSelection, id)
}

// Purchasable reports whether the selected package may be bought
func (c *Catalog) Purchasable() bool {
	p, ok := c.Selected()
	return ok && p.Active
}

// LoadedAt returns when the cache was last replaced
func (c *Catalog) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}

// Invalidate drops the cache and discards every load in flight
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens.Invalidate()
	c.packages = nil
	c.selected = -1
	c.loadedAt = time.Time{}
}

func clonePackage(p types.Package) types.Package {
	out := p
	if p.PriceIn != nil {
		out.PriceIn = new(big.Int).Set(p.PriceIn)
	}
	if p.RewardOut != nil {
		out.RewardOut = new(big.Int).Set(p.RewardOut)
	}
	return out
}

func clonePackages(ps []types.Package) []types.Package {
	out := make([]types.Package, len(ps))
	for i, p := range ps {
		out[i] = clonePackage(p)
	}
	return out
}
