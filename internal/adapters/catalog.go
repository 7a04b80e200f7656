// Package adapters contains anti-corruption adapters that let modules talk to
// each other through their own narrow interfaces.
package adapters

import (
	"context"

	catalogrepo "contractor_portal_backend/internal/catalog/repository"
	"contractor_portal_backend/platform/apperr"
)

// CatalogReaderAdapter adapts the catalog repository to the requests module's
// CatalogReader interface.
type CatalogReaderAdapter struct {
	repo catalogrepo.Repository
}

// NewCatalogReaderAdapter creates a catalog reader adapter.
func NewCatalogReaderAdapter(repo catalogrepo.Repository) *CatalogReaderAdapter {
	return &CatalogReaderAdapter{repo: repo}
}

// ActiveServiceExists reports whether an active service type with the code exists.
func (a *CatalogReaderAdapter) ActiveServiceExists(ctx context.Context, code string) (bool, error) {
	st, err := a.repo.GetByCode(ctx, code)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return false, nil
		}
		return false, err
	}
	return st.IsActive, nil
}
