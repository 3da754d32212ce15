package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/vali024/valix-shop/internal/domain"
)

var ErrItemNotFound = fmt.Errorf("catalog item: %w", domain.ErrNotFound)

// Catalog is the read contract the cart and order code depend on.
type Catalog interface {
	GetItem(ctx context.Context, id string) (*domain.Item, error)
}

// Resolve loads the given ids. Unknown ids are absent from the result rather than an error.
func Resolve(ctx context.Context, c Catalog, ids []string) (map[string]*domain.Item, error) {
	items := make(map[string]*domain.Item, len(ids))
	for _, id := range ids {
		item, err := c.GetItem(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get item %s: %w", id, err)
		}
		items[id] = item
	}
	return items, nil
}
