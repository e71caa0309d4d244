package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EntityKind identifies which table a batch row targets.
type EntityKind string

const (
	EntityMenu EntityKind = "menu"
	EntityItem EntityKind = "item"
)

// Action is the mutation a batch row requests.
type Action string

const (
	ActionInsert Action = "i"
	ActionUpdate Action = "u"
	ActionDelete Action = "d"
)

// ParseAction normalizes a client-supplied action code.
func ParseAction(s string) Action {
	return Action(strings.ToLower(strings.TrimSpace(s)))
}

// Valid reports whether a is one of insert, update or delete.
func (a Action) Valid() bool {
	switch a {
	case ActionInsert, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// SentinelPrice marks a batch row as a Menu in the legacy row format.
const SentinelPrice = "#"

// Menu is a named, ordered group of items belonging to one restaurant.
type Menu struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	RestaurantID int64     `json:"restaurant_id"`
	Order        int       `json:"order"`
	ImageURL     *string   `json:"image_url"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// MenuFields is the writable field set of a Menu.
type MenuFields struct {
	Name         string
	RestaurantID int64
	Order        int
	ImageURL     *string
}

// Matches reports whether m already holds exactly the values in f.
func (m Menu) Matches(f MenuFields) bool {
	return m.Name == f.Name &&
		m.RestaurantID == f.RestaurantID &&
		m.Order == f.Order &&
		equalOptional(m.ImageURL, f.ImageURL)
}

// Item is a priced entry on a menu.
type Item struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Price     string    `json:"price"`
	Order     int       `json:"order"`
	ImageURL  *string   `json:"image_url"`
	MenuID    int64     `json:"menu_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ItemFields is the writable field set of an Item.
type ItemFields struct {
	Name     string
	Price    string
	Order    int
	ImageURL *string
	MenuID   int64
}

// Matches reports whether it already holds exactly the values in f.
func (it Item) Matches(f ItemFields) bool {
	return it.Name == f.Name &&
		it.Price == f.Price &&
		it.Order == f.Order &&
		it.MenuID == f.MenuID &&
		equalOptional(it.ImageURL, f.ImageURL)
}

func equalOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// BatchRow is one client-submitted operation in a mixed menu/item batch.
//
// Type is optional. When empty the row kind is inferred from ID and Price.
type BatchRow struct {
	Action   string     `json:"action"`
	Type     string     `json:"type,omitempty"`
	ID       FlexString `json:"id"`
	Name     string     `json:"name"`
	Price    FlexString `json:"price"`
	ImageURL *string    `json:"image_url"`
	Order    int        `json:"order"`
	ParentID int64      `json:"parent_id"`

	// decodeErr is set when the row's JSON could not be read. The row is
	// reported as InvalidRow and the rest of the batch still runs.
	decodeErr error
}

// batchRowJSON is the wire form of BatchRow. Numeric fields may arrive as
// numbers or numeric strings.
type batchRowJSON struct {
	Action   string     `json:"action"`
	Type     string     `json:"type"`
	ID       FlexString `json:"id"`
	Name     string     `json:"name"`
	Price    FlexString `json:"price"`
	ImageURL *string    `json:"image_url"`
	Order    FlexString `json:"order"`
	ParentID FlexString `json:"parent_id"`
}

// UnmarshalJSON implements json.Unmarshaler. It never fails: a row that
// cannot be read keeps whatever fields decoded and records the error.
func (r *BatchRow) UnmarshalJSON(data []byte) error {
	var w batchRowJSON
	err := json.Unmarshal(data, &w)
	*r = BatchRow{
		Action:   w.Action,
		Type:     w.Type,
		ID:       w.ID,
		Name:     w.Name,
		Price:    w.Price,
		ImageURL: w.ImageURL,
	}
	if err != nil {
		r.decodeErr = fmt.Errorf("%w: %v", ErrInvalidRow, err)
		return nil
	}

	order, err := w.Order.Int("order")
	if err != nil {
		r.decodeErr = err
		return nil
	}
	parent, err := w.ParentID.Int("parent_id")
	if err != nil {
		r.decodeErr = err
		return nil
	}
	r.Order = int(order)
	r.ParentID = parent
	return nil
}

// MenuRow is one operation in a menus-only batch.
type MenuRow struct {
	Action       string     `json:"action"`
	ID           FlexString `json:"id"`
	Name         string     `json:"name"`
	ImageURL     *string    `json:"image_url"`
	RestaurantID int64      `json:"restaurant_id"`
	Order        int        `json:"order"`

	decodeErr error
}

type menuRowJSON struct {
	Action       string     `json:"action"`
	ID           FlexString `json:"id"`
	Name         string     `json:"name"`
	ImageURL     *string    `json:"image_url"`
	RestaurantID FlexString `json:"restaurant_id"`
	Order        FlexString `json:"order"`
}

// UnmarshalJSON implements json.Unmarshaler with the same rules as
// BatchRow.UnmarshalJSON.
func (r *MenuRow) UnmarshalJSON(data []byte) error {
	var w menuRowJSON
	err := json.Unmarshal(data, &w)
	*r = MenuRow{
		Action:   w.Action,
		ID:       w.ID,
		Name:     w.Name,
		ImageURL: w.ImageURL,
	}
	if err != nil {
		r.decodeErr = fmt.Errorf("%w: %v", ErrInvalidRow, err)
		return nil
	}

	restaurant, err := w.RestaurantID.Int("restaurant_id")
	if err != nil {
		r.decodeErr = err
		return nil
	}
	order, err := w.Order.Int("order")
	if err != nil {
		r.decodeErr = err
		return nil
	}
	r.RestaurantID = restaurant
	r.Order = int(order)
	return nil
}

// BatchRow converts r to the mixed batch format. Inserts never carry an id,
// the store assigns one.
func (r MenuRow) BatchRow() BatchRow {
	row := BatchRow{
		Action:    r.Action,
		Type:      string(EntityMenu),
		ID:        r.ID,
		Name:      r.Name,
		ImageURL:  r.ImageURL,
		Order:     r.Order,
		ParentID:  r.RestaurantID,
		decodeErr: r.decodeErr,
	}
	if ParseAction(r.Action) == ActionInsert {
		row.ID = ""
	}
	return row
}

// FlexString decodes a JSON string or number into its text form.
// Clients send ids and prices either way.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*s = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*s = FlexString(n.String())
	return nil
}

// String returns the raw text.
func (s FlexString) String() string {
	return string(s)
}

// Int parses s as an integer field named field. Empty text is 0.
func (s FlexString) Int(field string) (int64, error) {
	raw := strings.TrimSpace(string(s))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not an integer", ErrInvalidRow, field, raw)
	}
	return n, nil
}
