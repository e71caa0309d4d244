package sqlite

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/menusync/internal/config"
	"github.com/JonMunkholm/menusync/internal/core"
)

// setupTestStore opens a private in-memory database with the schema applied
// and restaurant 3 seeded.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	store, err := Open(ctx, fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(store.Close)

	require.NoError(t, store.Migrate(ctx))
	_, err = store.DB().ExecContext(ctx, `INSERT INTO restaurants (id, name) VALUES (3, 'Harbor Grill')`)
	require.NoError(t, err)

	return store
}

func newService(store core.Store, mode string) *core.Service {
	return core.NewService(store, config.SyncConfig{
		Mode:            mode,
		MaxRows:         100,
		MaxConcurrent:   2,
		MaxWaitTime:     time.Second,
		Timeout:         10 * time.Second,
		ValidateParents: true,
	})
}

func count(t *testing.T, store *Store, table string) int {
	t.Helper()
	var n int
	require.NoError(t, store.DB().QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

func TestMigrate_Idempotent(t *testing.T) {
	store := setupTestStore(t)
	assert.NoError(t, store.Migrate(context.Background()))
}

func TestStore_MenuCRUD(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	image := "https://cdn.example.com/lunch.png"

	err := store.InTx(ctx, func(tx core.Tx) error {
		id := int64(7)
		m, err := tx.CreateMenu(ctx, &id, core.MenuFields{Name: "Lunch", RestaurantID: 3, Order: 2, ImageURL: &image})
		require.NoError(t, err)
		assert.Equal(t, int64(7), m.ID)
		require.NotNil(t, m.ImageURL)
		assert.Equal(t, image, *m.ImageURL)
		assert.False(t, m.CreatedAt.IsZero())

		generated, err := tx.CreateMenu(ctx, nil, core.MenuFields{Name: "Dinner", RestaurantID: 3})
		require.NoError(t, err)
		assert.Equal(t, int64(8), generated.ID, "generated ids continue past client ids")
		assert.Nil(t, generated.ImageURL)

		_, err = tx.CreateMenu(ctx, &id, core.MenuFields{Name: "Copy", RestaurantID: 3})
		assert.ErrorIs(t, err, core.ErrDuplicateID)

		updated, err := tx.UpdateMenu(ctx, 7, core.MenuFields{Name: "Late Lunch", RestaurantID: 3, Order: 1})
		require.NoError(t, err)
		assert.Equal(t, "Late Lunch", updated.Name)
		assert.Nil(t, updated.ImageURL)

		_, err = tx.UpdateMenu(ctx, 404, core.MenuFields{Name: "Ghost"})
		assert.ErrorIs(t, err, core.ErrNotFound)

		ok, err := tx.MenuExists(ctx, 7)
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, tx.DeleteMenu(ctx, 7))
		_, err = tx.FindMenu(ctx, 7)
		assert.ErrorIs(t, err, core.ErrNotFound)
		assert.ErrorIs(t, tx.DeleteMenu(ctx, 7), core.ErrNotFound)
		return nil
	})
	require.NoError(t, err)

	maxID, err := store.MaxMenuID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(8), maxID)
}

func TestStore_Savepoints(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.InTx(ctx, func(tx core.Tx) error {
		require.NoError(t, tx.Savepoint(ctx, "row_0"))
		_, err := tx.CreateItem(ctx, core.ItemFields{Name: "Soup", Price: "4.50", MenuID: 7})
		require.NoError(t, err)
		require.NoError(t, tx.RollbackTo(ctx, "row_0"))
		require.NoError(t, tx.Release(ctx, "row_0"))

		require.NoError(t, tx.Savepoint(ctx, "row_1"))
		_, err = tx.CreateItem(ctx, core.ItemFields{Name: "Bread", Price: "1.00", MenuID: 7})
		require.NoError(t, err)
		return tx.Release(ctx, "row_1")
	})
	require.NoError(t, err)

	assert.Equal(t, 1, count(t, store, "items"))
}

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError(nil))

	dup := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey}
	assert.ErrorIs(t, mapError(dup), core.ErrDuplicateID)

	notNull := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintNotNull}
	_, isRow := core.RowErrorKind(mapError(notNull))
	assert.False(t, isRow)
}

func TestSync_MenuThenItem(t *testing.T) {
	store := setupTestStore(t)
	svc := newService(store, "partial")

	result, err := svc.ApplyBatch(context.Background(), []core.BatchRow{
		{Action: "i", ID: "7-menu", Name: "Lunch", Price: "#", Order: 1, ParentID: 3},
		{Action: "i", ID: "", Name: "Soup", Price: "4.50", Order: 1, ParentID: 7},
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, core.MenusItemsSyncedMessage, result.Message)

	var menuID int64
	require.NoError(t, store.DB().QueryRow(`SELECT menu_id FROM items WHERE name = 'Soup'`).Scan(&menuID))
	assert.Equal(t, int64(7), menuID)
}

func TestSync_ReversedOrderIsDangling(t *testing.T) {
	store := setupTestStore(t)
	svc := newService(store, "partial")

	result, err := svc.ApplyBatch(context.Background(), []core.BatchRow{
		{Action: "i", ID: "", Name: "Soup", Price: "4.50", ParentID: 7},
		{Action: "i", ID: "7-menu", Name: "Lunch", Price: "#", ParentID: 3},
	})
	require.NoError(t, err)

	require.NotNil(t, result.Results[0].Error)
	assert.Equal(t, core.KindDanglingParent, result.Results[0].Error.Kind)
	assert.Equal(t, core.StatusApplied, result.Results[1].Status)
	assert.Equal(t, 0, count(t, store, "items"))
	assert.Equal(t, 1, count(t, store, "menus"))
}

func TestSync_MalformedRowAmongValidRows(t *testing.T) {
	store := setupTestStore(t)
	svc := newService(store, "partial")

	result, err := svc.ApplyBatch(context.Background(), []core.BatchRow{
		{Action: "i", ID: "7-menu", Name: "Lunch", Price: "#", ParentID: 3},
		{Action: "u", ID: "x-menu", Name: "Broken", Price: "#", ParentID: 3},
		{Action: "i", Name: "Soup", Price: "4.50", ParentID: 7},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Applied)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, core.KindMalformedIdentifier, result.Results[1].Error.Kind)
	assert.Equal(t, 2, count(t, store, "menus")+count(t, store, "items"))
}

func TestSync_DuplicateRowIsUndone(t *testing.T) {
	store := setupTestStore(t)
	svc := newService(store, "partial")
	ctx := context.Background()

	_, err := svc.ApplyBatch(ctx, []core.BatchRow{
		{Action: "i", ID: "7-menu", Name: "Lunch", Price: "#", ParentID: 3},
	})
	require.NoError(t, err)

	result, err := svc.ApplyBatch(ctx, []core.BatchRow{
		{Action: "i", ID: "7-menu", Name: "Lunch Again", Price: "#", ParentID: 3},
		{Action: "i", ID: "8-menu", Name: "Dinner", Price: "#", ParentID: 3},
	})
	require.NoError(t, err)

	assert.Equal(t, core.KindDuplicateIdentifier, result.Results[0].Error.Kind)
	assert.Equal(t, core.StatusApplied, result.Results[1].Status)

	var name string
	require.NoError(t, store.DB().QueryRow(`SELECT name FROM menus WHERE id = 7`).Scan(&name))
	assert.Equal(t, "Lunch", name)
}

func TestSync_IdempotentUpdate(t *testing.T) {
	store := setupTestStore(t)
	svc := newService(store, "partial")
	ctx := context.Background()

	_, err := svc.ApplyBatch(ctx, []core.BatchRow{
		{Action: "i", ID: "7-menu", Name: "Lunch", Price: "#", ParentID: 3},
		{Action: "i", Name: "Soup", Price: "4.50", ParentID: 7},
	})
	require.NoError(t, err)

	update := []core.BatchRow{
		{Action: "u", ID: "1", Name: "Tomato Soup", Price: "5.00", Order: 2, ParentID: 7},
	}
	for i := 0; i < 2; i++ {
		result, err := svc.ApplyBatch(ctx, update)
		require.NoError(t, err)
		assert.True(t, result.Success, "attempt %d", i+1)
	}

	var name, price string
	require.NoError(t, store.DB().QueryRow(`SELECT name, price FROM items WHERE id = 1`).Scan(&name, &price))
	assert.Equal(t, "Tomato Soup", name)
	assert.Equal(t, "5.00", price)
}

func TestSync_DeleteMenuKeepsItems(t *testing.T) {
	store := setupTestStore(t)
	svc := newService(store, "partial")
	ctx := context.Background()

	_, err := svc.ApplyBatch(ctx, []core.BatchRow{
		{Action: "i", ID: "7-menu", Name: "Lunch", Price: "#", ParentID: 3},
		{Action: "i", Name: "Soup", Price: "4.50", ParentID: 7},
		{Action: "i", Name: "Bread", Price: "1.00", ParentID: 7},
	})
	require.NoError(t, err)

	result, err := svc.ApplyBatch(ctx, []core.BatchRow{
		{Action: "d", ID: "7-menu", Price: "#"},
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 0, count(t, store, "menus"))
	assert.Equal(t, 2, count(t, store, "items"))
}

func TestSync_AtomicModeLeavesStoreUntouched(t *testing.T) {
	store := setupTestStore(t)
	svc := newService(store, "atomic")

	result, err := svc.ApplyBatch(context.Background(), []core.BatchRow{
		{Action: "i", ID: "7-menu", Name: "Lunch", Price: "#", ParentID: 3},
		{Action: "d", ID: "404"},
	})
	require.NoError(t, err)

	assert.False(t, result.Committed)
	assert.Equal(t, core.StatusRolledBack, result.Results[0].Status)
	assert.Equal(t, 0, count(t, store, "menus"))
}
