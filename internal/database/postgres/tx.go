package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/menusync/internal/core"
)

const (
	menuColumns = `id, name, restaurant_id, "order", image_url, created_at, updated_at`
	itemColumns = `id, name, price, "order", image_url, menu_id, created_at, updated_at`
)

// menuSequenceLock is the advisory lock key guarding menus_id_seq.
const menuSequenceLock int64 = 0x6d656e75

const advanceMenuSequence = `
	SELECT setval(seq, GREATEST($1::bigint, COALESCE(pg_sequence_last_value(seq), 0)))
	FROM (SELECT pg_get_serial_sequence('menus', 'id')::regclass AS seq) s`

// txStore implements core.Tx over one pgx transaction.
type txStore struct {
	tx pgx.Tx
}

func scanMenu(row pgx.Row) (core.Menu, error) {
	var m core.Menu
	err := row.Scan(&m.ID, &m.Name, &m.RestaurantID, &m.Order, &m.ImageURL, &m.CreatedAt, &m.UpdatedAt)
	return m, mapError(err)
}

func scanItem(row pgx.Row) (core.Item, error) {
	var it core.Item
	err := row.Scan(&it.ID, &it.Name, &it.Price, &it.Order, &it.ImageURL, &it.MenuID, &it.CreatedAt, &it.UpdatedAt)
	return it, mapError(err)
}

func (t *txStore) CreateMenu(ctx context.Context, id *int64, f core.MenuFields) (core.Menu, error) {
	if id == nil {
		return scanMenu(t.tx.QueryRow(ctx,
			`INSERT INTO menus (name, restaurant_id, "order", image_url)
			 VALUES ($1, $2, $3, $4)
			 RETURNING `+menuColumns,
			f.Name, f.RestaurantID, f.Order, f.ImageURL))
	}

	// Explicit-id inserts take a transaction-scoped lock so the sequence
	// update below never interleaves with another batch's.
	if _, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, menuSequenceLock); err != nil {
		return core.Menu{}, fmt.Errorf("lock menu sequence: %w", err)
	}

	m, err := scanMenu(t.tx.QueryRow(ctx,
		`INSERT INTO menus (id, name, restaurant_id, "order", image_url)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+menuColumns,
		*id, f.Name, f.RestaurantID, f.Order, f.ImageURL))
	if err != nil {
		return core.Menu{}, err
	}

	// setval is not transactional, so the sequence only ever moves forward.
	if _, err := t.tx.Exec(ctx, advanceMenuSequence, *id); err != nil {
		return core.Menu{}, fmt.Errorf("advance menu sequence: %w", err)
	}
	return m, nil
}

func (t *txStore) FindMenu(ctx context.Context, id int64) (core.Menu, error) {
	return scanMenu(t.tx.QueryRow(ctx,
		`SELECT `+menuColumns+` FROM menus WHERE id = $1`, id))
}

func (t *txStore) UpdateMenu(ctx context.Context, id int64, f core.MenuFields) (core.Menu, error) {
	return scanMenu(t.tx.QueryRow(ctx,
		`UPDATE menus
		 SET name = $2, restaurant_id = $3, "order" = $4, image_url = $5, updated_at = now()
		 WHERE id = $1
		 RETURNING `+menuColumns,
		id, f.Name, f.RestaurantID, f.Order, f.ImageURL))
}

func (t *txStore) DeleteMenu(ctx context.Context, id int64) error {
	return t.deleteByID(ctx, "menus", id)
}

func (t *txStore) MenuExists(ctx context.Context, id int64) (bool, error) {
	return t.exists(ctx, `SELECT EXISTS (SELECT 1 FROM menus WHERE id = $1)`, id)
}

func (t *txStore) CreateItem(ctx context.Context, f core.ItemFields) (core.Item, error) {
	return scanItem(t.tx.QueryRow(ctx,
		`INSERT INTO items (name, price, "order", image_url, menu_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+itemColumns,
		f.Name, f.Price, f.Order, f.ImageURL, f.MenuID))
}

func (t *txStore) FindItem(ctx context.Context, id int64) (core.Item, error) {
	return scanItem(t.tx.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = $1`, id))
}

func (t *txStore) UpdateItem(ctx context.Context, id int64, f core.ItemFields) (core.Item, error) {
	return scanItem(t.tx.QueryRow(ctx,
		`UPDATE items
		 SET name = $2, price = $3, "order" = $4, image_url = $5, menu_id = $6, updated_at = now()
		 WHERE id = $1
		 RETURNING `+itemColumns,
		id, f.Name, f.Price, f.Order, f.ImageURL, f.MenuID))
}

func (t *txStore) DeleteItem(ctx context.Context, id int64) error {
	return t.deleteByID(ctx, "items", id)
}

func (t *txStore) RestaurantExists(ctx context.Context, id int64) (bool, error) {
	return t.exists(ctx, `SELECT EXISTS (SELECT 1 FROM restaurants WHERE id = $1)`, id)
}

func (t *txStore) Savepoint(ctx context.Context, name string) error {
	_, err := t.tx.Exec(ctx, "SAVEPOINT "+pgx.Identifier{name}.Sanitize())
	return err
}

func (t *txStore) RollbackTo(ctx context.Context, name string) error {
	_, err := t.tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+pgx.Identifier{name}.Sanitize())
	return err
}

func (t *txStore) Release(ctx context.Context, name string) error {
	_, err := t.tx.Exec(ctx, "RELEASE SAVEPOINT "+pgx.Identifier{name}.Sanitize())
	return err
}

func (t *txStore) deleteByID(ctx context.Context, table string, id int64) error {
	tag, err := t.tx.Exec(ctx, "DELETE FROM "+pgx.Identifier{table}.Sanitize()+" WHERE id = $1", id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (t *txStore) exists(ctx context.Context, query string, id int64) (bool, error) {
	var ok bool
	if err := t.tx.QueryRow(ctx, query, id).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}
