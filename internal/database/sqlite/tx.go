package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/JonMunkholm/menusync/internal/core"
)

const (
	menuColumns = `id, name, restaurant_id, "order", image_url, created_at, updated_at`
	itemColumns = `id, name, price, "order", image_url, menu_id, created_at, updated_at`
)

// txStore implements core.Tx over one database/sql transaction.
type txStore struct {
	tx *sql.Tx
}

func scanMenu(row *sql.Row) (core.Menu, error) {
	var m core.Menu
	var image sql.NullString
	var created, updated timestamp
	err := row.Scan(&m.ID, &m.Name, &m.RestaurantID, &m.Order, &image, &created, &updated)
	if err != nil {
		return core.Menu{}, mapError(err)
	}
	m.ImageURL = nullable(image)
	m.CreatedAt, m.UpdatedAt = time.Time(created), time.Time(updated)
	return m, nil
}

func scanItem(row *sql.Row) (core.Item, error) {
	var it core.Item
	var image sql.NullString
	var created, updated timestamp
	err := row.Scan(&it.ID, &it.Name, &it.Price, &it.Order, &image, &it.MenuID, &created, &updated)
	if err != nil {
		return core.Item{}, mapError(err)
	}
	it.ImageURL = nullable(image)
	it.CreatedAt, it.UpdatedAt = time.Time(created), time.Time(updated)
	return it, nil
}

// timestamp scans a DATETIME column. The driver returns time.Time only when
// it knows the declared column type, which RETURNING clauses do not carry.
type timestamp time.Time

func (ts *timestamp) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*ts = timestamp(v)
		return nil
	case string:
		return ts.parse(v)
	case []byte:
		return ts.parse(string(v))
	case nil:
		*ts = timestamp(time.Time{})
		return nil
	}
	return fmt.Errorf("unsupported timestamp type %T", src)
}

func (ts *timestamp) parse(s string) error {
	s = strings.TrimSuffix(s, "Z")
	for _, layout := range sqlite3.SQLiteTimestampFormats {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			*ts = timestamp(t)
			return nil
		}
	}
	return fmt.Errorf("parse timestamp %q", s)
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func (t *txStore) CreateMenu(ctx context.Context, id *int64, f core.MenuFields) (core.Menu, error) {
	// A NULL id lets SQLite assign max(id)+1, so client-chosen ids never
	// collide with later generated ones.
	return scanMenu(t.tx.QueryRowContext(ctx,
		`INSERT INTO menus (id, name, restaurant_id, "order", image_url)
		 VALUES (?, ?, ?, ?, ?)
		 RETURNING `+menuColumns,
		id, f.Name, f.RestaurantID, f.Order, f.ImageURL))
}

func (t *txStore) FindMenu(ctx context.Context, id int64) (core.Menu, error) {
	return scanMenu(t.tx.QueryRowContext(ctx,
		`SELECT `+menuColumns+` FROM menus WHERE id = ?`, id))
}

func (t *txStore) UpdateMenu(ctx context.Context, id int64, f core.MenuFields) (core.Menu, error) {
	return scanMenu(t.tx.QueryRowContext(ctx,
		`UPDATE menus
		 SET name = ?, restaurant_id = ?, "order" = ?, image_url = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?
		 RETURNING `+menuColumns,
		f.Name, f.RestaurantID, f.Order, f.ImageURL, id))
}

func (t *txStore) DeleteMenu(ctx context.Context, id int64) error {
	return t.deleteByID(ctx, `DELETE FROM menus WHERE id = ?`, id)
}

func (t *txStore) MenuExists(ctx context.Context, id int64) (bool, error) {
	return t.exists(ctx, `SELECT EXISTS (SELECT 1 FROM menus WHERE id = ?)`, id)
}

func (t *txStore) CreateItem(ctx context.Context, f core.ItemFields) (core.Item, error) {
	return scanItem(t.tx.QueryRowContext(ctx,
		`INSERT INTO items (name, price, "order", image_url, menu_id)
		 VALUES (?, ?, ?, ?, ?)
		 RETURNING `+itemColumns,
		f.Name, f.Price, f.Order, f.ImageURL, f.MenuID))
}

func (t *txStore) FindItem(ctx context.Context, id int64) (core.Item, error) {
	return scanItem(t.tx.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id))
}

func (t *txStore) UpdateItem(ctx context.Context, id int64, f core.ItemFields) (core.Item, error) {
	return scanItem(t.tx.QueryRowContext(ctx,
		`UPDATE items
		 SET name = ?, price = ?, "order" = ?, image_url = ?, menu_id = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?
		 RETURNING `+itemColumns,
		f.Name, f.Price, f.Order, f.ImageURL, f.MenuID, id))
}

func (t *txStore) DeleteItem(ctx context.Context, id int64) error {
	return t.deleteByID(ctx, `DELETE FROM items WHERE id = ?`, id)
}

func (t *txStore) RestaurantExists(ctx context.Context, id int64) (bool, error) {
	return t.exists(ctx, `SELECT EXISTS (SELECT 1 FROM restaurants WHERE id = ?)`, id)
}

// Savepoint names come from the sync engine ("row_<n>") and are safe to
// inline.
func (t *txStore) Savepoint(ctx context.Context, name string) error {
	_, err := t.tx.ExecContext(ctx, `SAVEPOINT "`+name+`"`)
	return err
}

func (t *txStore) RollbackTo(ctx context.Context, name string) error {
	_, err := t.tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT "`+name+`"`)
	return err
}

func (t *txStore) Release(ctx context.Context, name string) error {
	_, err := t.tx.ExecContext(ctx, `RELEASE SAVEPOINT "`+name+`"`)
	return err
}

func (t *txStore) deleteByID(ctx context.Context, query string, id int64) error {
	res, err := t.tx.ExecContext(ctx, query, id)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (t *txStore) exists(ctx context.Context, query string, id int64) (bool, error) {
	var ok bool
	if err := t.tx.QueryRowContext(ctx, query, id).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}
