package assets

import (
	"context"
	"fmt"
	"sync"

	"github.com/kataras/figma-assets/pkg/storage"
	"github.com/sirupsen/logrus"
)

// Repository keeps the saved asset list in a storage area. The list is read,
// modified and written back whole; mutations are serialised so two saves from
// this process never overwrite each other.
type Repository struct {
	area storage.Area
	mu   sync.Mutex
}

// NewRepository returns a repository on area.
func NewRepository(area storage.Area) *Repository {
	return &Repository{area: area}
}

// List returns every saved asset, oldest first. A missing list is empty.
func (r *Repository) List(ctx context.Context) ([]Asset, error) {
	list := []Asset{}
	if _, err := r.area.Get(ctx, SavedAssetsKey, &list); err != nil {
		return nil, fmt.Errorf("load saved assets: %w", err)
	}
	if list == nil {
		list = []Asset{}
	}
	return list, nil
}

// Save inserts a or, when an asset with the same node and document already
// exists, replaces it in place. A replaced asset keeps its ID and creation
// time and its UpdatedAt strictly increases. The stored record is returned.
func (r *Repository) Save(ctx context.Context, a Asset) (Asset, error) {
	if err := a.Validate(); err != nil {
		return Asset{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.List(ctx)
	if err != nil {
		return Asset{}, err
	}

	now := Now()
	log := logrus.WithFields(logrus.Fields{"node_id": a.NodeID, "design_url": a.DesignURL})

	idx := -1
	for i := range list {
		if list[i].SameIdentity(a) {
			idx = i
			break
		}
	}

	if idx >= 0 {
		existing := list[idx]
		a.ID = existing.ID
		a.CreatedAt = existing.CreatedAt
		a.UpdatedAt = now
		if a.UpdatedAt <= existing.UpdatedAt {
			a.UpdatedAt = existing.UpdatedAt + 1
		}
		list[idx] = a
		log.WithField("asset_id", a.ID).Info("Asset updated")
	} else {
		if a.ID == "" || containsID(list, a.ID) {
			a.ID = NewID()
		}
		if a.CreatedAt == 0 {
			a.CreatedAt = now
		}
		if a.UpdatedAt == 0 {
			a.UpdatedAt = a.CreatedAt
		}
		list = append(list, a)
		log.WithField("asset_id", a.ID).Info("Asset created")
	}

	if err := r.area.Set(ctx, SavedAssetsKey, list); err != nil {
		return Asset{}, fmt.Errorf("store saved assets: %w", err)
	}
	return a, nil
}

// Delete removes the asset with the given ID. A missing ID is not an error
// and leaves the list untouched.
func (r *Repository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.List(ctx)
	if err != nil {
		return err
	}

	kept := list[:0]
	for _, a := range list {
		if a.ID != id {
			kept = append(kept, a)
		}
	}

	if len(kept) == len(list) {
		logrus.WithField("asset_id", id).Debug("Asset not found for deletion, considered successful")
		return nil
	}

	if err := r.area.Set(ctx, SavedAssetsKey, kept); err != nil {
		return fmt.Errorf("store saved assets: %w", err)
	}
	logrus.WithField("asset_id", id).Info("Asset deleted")
	return nil
}

func containsID(list []Asset, id string) bool {
	for _, a := range list {
		if a.ID == id {
			return true
		}
	}
	return false
}
