package core

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by a store when the target row does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicateID is returned by a store when an explicit primary key is
	// already taken.
	ErrDuplicateID = errors.New("duplicate identifier")
)

// Tx is the set of entity operations available inside one batch transaction.
//
// Implementations perform no cross-entity checks: an item may point at a
// menu that does not exist, and deleting a menu leaves its items in place.
type Tx interface {
	// CreateMenu inserts a menu. A non-nil id is used as the primary key
	// instead of the next sequence value.
	CreateMenu(ctx context.Context, id *int64, f MenuFields) (Menu, error)
	FindMenu(ctx context.Context, id int64) (Menu, error)
	UpdateMenu(ctx context.Context, id int64, f MenuFields) (Menu, error)
	DeleteMenu(ctx context.Context, id int64) error
	MenuExists(ctx context.Context, id int64) (bool, error)

	CreateItem(ctx context.Context, f ItemFields) (Item, error)
	FindItem(ctx context.Context, id int64) (Item, error)
	UpdateItem(ctx context.Context, id int64, f ItemFields) (Item, error)
	DeleteItem(ctx context.Context, id int64) error

	RestaurantExists(ctx context.Context, id int64) (bool, error)

	// Savepoint, RollbackTo and Release scope a single row's mutation so a
	// failed row can be undone without losing the rest of the batch.
	Savepoint(ctx context.Context, name string) error
	RollbackTo(ctx context.Context, name string) error
	Release(ctx context.Context, name string) error
}

// Store is a persistent menu catalog.
type Store interface {
	// InTx runs fn in a transaction. The transaction commits when fn returns
	// nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// MaxMenuID returns the highest menu id, or 0 when there are no menus.
	MaxMenuID(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error
	Close()
}
