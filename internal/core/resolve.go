package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Resolution is what a batch row refers to.
// ID is nil for inserts that leave the primary key to the store.
type Resolution struct {
	Kind EntityKind
	ID   *int64
}

// Classify decides whether row targets a menu or an item.
//
// An explicit Type wins. Otherwise a row is a menu when its id contains
// "menu" (composite ids such as "7-menu") or its price is the "#" sentinel,
// and an item in every other case.
func Classify(row BatchRow) (EntityKind, error) {
	switch strings.ToLower(strings.TrimSpace(row.Type)) {
	case "":
	case string(EntityMenu):
		return EntityMenu, nil
	case string(EntityItem):
		return EntityItem, nil
	default:
		return "", fmt.Errorf("%w: unknown type %q", ErrInvalidRow, row.Type)
	}

	if strings.Contains(row.ID.String(), "menu") || row.Price.String() == SentinelPrice {
		return EntityMenu, nil
	}
	return EntityItem, nil
}

// Resolve classifies row and extracts its numeric primary key.
//
// Menu ids are read from the first "-" separated segment, so "7-menu"
// resolves to 7. Item ids are read whole. Updates and deletes need a
// positive id; inserts may omit it. Item inserts never carry one.
func Resolve(row BatchRow) (Resolution, error) {
	kind, err := Classify(row)
	if err != nil {
		return Resolution{}, err
	}
	res := Resolution{Kind: kind}
	action := ParseAction(row.Action)

	if kind == EntityItem && action == ActionInsert {
		return res, nil
	}

	raw := strings.TrimSpace(row.ID.String())
	if kind == EntityMenu {
		raw, _, _ = strings.Cut(raw, "-")
	}

	if id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil && id > 0 {
		res.ID = &id
		return res, nil
	}

	if action == ActionInsert {
		return res, nil
	}
	return res, fmt.Errorf("%w: %s id %q", ErrMalformedIdentifier, kind, row.ID)
}
