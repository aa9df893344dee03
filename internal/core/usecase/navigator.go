package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bekzodov/kutubxona-bot/internal/core/domain"
	"github.com/bekzodov/kutubxona-bot/internal/core/ports"
)

const categoryTokenPrefix = "c:"

// Navigator walks the category tree one level at a time. It never loads more
// than the children of the current position, so deep or wide trees are never
// materialized in memory.
type Navigator struct {
	catalog ports.CatalogStore
}

func NewNavigator(catalog ports.CatalogStore) *Navigator {
	return &Navigator{catalog: catalog}
}

// Children lists the categories directly under position, ordered by name.
// A nil position means the root level; an empty result means a leaf.
func (n *Navigator) Children(ctx context.Context, position *int64) ([]domain.Category, error) {
	children, err := n.catalog.ChildrenOf(ctx, position)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return children, nil
}

// Resolve matches a typed label against the children of position. The match
// is exact and case-sensitive; a miss is a user-correctable condition
// surfaced as domain.ErrCategoryNotFound, never a fault.
func (n *Navigator) Resolve(ctx context.Context, position *int64, label string) (*domain.Category, error) {
	category, err := n.catalog.FindByNameAndParent(ctx, label, position)
	if err != nil {
		return nil, err
	}
	return category, nil
}

// ResolveToken resolves an echoed menu token ("c:<id>") and verifies the
// category still sits directly under position. Tokens from stale menus or a
// different level resolve to not-found rather than jumping the walk.
func (n *Navigator) ResolveToken(ctx context.Context, position *int64, token string) (*domain.Category, error) {
	raw, ok := strings.CutPrefix(token, categoryTokenPrefix)
	if !ok {
		return nil, domain.WrapError(domain.ErrCategoryNotFound, "resolve token", fmt.Errorf("malformed token %q", token))
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCategoryNotFound, "resolve token", fmt.Errorf("malformed token %q", token))
	}

	category, err := n.catalog.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if !samePosition(category.ParentID, position) {
		return nil, domain.WrapError(domain.ErrCategoryNotFound, "resolve token", fmt.Errorf("token %q is not a child of the current level", token))
	}
	return category, nil
}

// Ascend returns the parent position of the current one, or root when the
// position is already top-level.
func (n *Navigator) Ascend(ctx context.Context, position *int64) (*int64, error) {
	if position == nil {
		return nil, nil
	}
	category, err := n.catalog.GetCategory(ctx, *position)
	if err != nil {
		return nil, err
	}
	return category.ParentID, nil
}

// CategoryToken builds the choice token issued with a rendered menu entry.
func CategoryToken(id int64) string {
	return categoryTokenPrefix + strconv.FormatInt(id, 10)
}

func samePosition(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
