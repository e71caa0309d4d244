package core

import (
	"context"
	"maps"
	"sync"
)

// memStore is an in-memory Store for exercising the batch engine.
type memStore struct {
	mu sync.Mutex

	menus       map[int64]Menu
	items       map[int64]Item
	restaurants map[int64]bool
	nextMenu    int64
	nextItem    int64

	// errOn injects an infrastructure failure into the named operation.
	errOn map[string]error

	menuUpdates int
	itemUpdates int
	commits     int
}

func newMemStore(restaurants ...int64) *memStore {
	s := &memStore{
		menus:       make(map[int64]Menu),
		items:       make(map[int64]Item),
		restaurants: make(map[int64]bool),
		nextMenu:    1,
		nextItem:    1,
		errOn:       make(map[string]error),
	}
	for _, id := range restaurants {
		s.restaurants[id] = true
	}
	return s
}

type memSnapshot struct {
	menus    map[int64]Menu
	items    map[int64]Item
	nextMenu int64
	nextItem int64
}

func (s *memStore) snapshot() memSnapshot {
	return memSnapshot{
		menus:    maps.Clone(s.menus),
		items:    maps.Clone(s.items),
		nextMenu: s.nextMenu,
		nextItem: s.nextItem,
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.menus = snap.menus
	s.items = snap.items
	s.nextMenu = snap.nextMenu
	s.nextItem = snap.nextItem
}

func (s *memStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.snapshot()
	tx := &memTx{s: s, savepoints: make(map[string]memSnapshot)}
	if err := fn(tx); err != nil {
		s.restore(start)
		return err
	}
	s.commits++
	return nil
}

func (s *memStore) MaxMenuID(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var max int64
	for id := range s.menus {
		if id > max {
			max = id
		}
	}
	return max, nil
}

func (s *memStore) Ping(ctx context.Context) error { return nil }
func (s *memStore) Close()                         {}

func (s *memStore) seedMenu(m Menu) {
	s.menus[m.ID] = m
	if m.ID >= s.nextMenu {
		s.nextMenu = m.ID + 1
	}
}

func (s *memStore) seedItem(it Item) {
	s.items[it.ID] = it
	if it.ID >= s.nextItem {
		s.nextItem = it.ID + 1
	}
}

type memTx struct {
	s          *memStore
	savepoints map[string]memSnapshot
}

func (t *memTx) injected(op string) error {
	return t.s.errOn[op]
}

func (t *memTx) CreateMenu(ctx context.Context, id *int64, f MenuFields) (Menu, error) {
	if err := t.injected("CreateMenu"); err != nil {
		return Menu{}, err
	}
	var newID int64
	if id != nil {
		if _, ok := t.s.menus[*id]; ok {
			return Menu{}, ErrDuplicateID
		}
		newID = *id
	} else {
		newID = t.s.nextMenu
	}
	if newID >= t.s.nextMenu {
		t.s.nextMenu = newID + 1
	}
	m := Menu{ID: newID, Name: f.Name, RestaurantID: f.RestaurantID, Order: f.Order, ImageURL: f.ImageURL}
	t.s.menus[newID] = m
	return m, nil
}

func (t *memTx) FindMenu(ctx context.Context, id int64) (Menu, error) {
	m, ok := t.s.menus[id]
	if !ok {
		return Menu{}, ErrNotFound
	}
	return m, nil
}

func (t *memTx) UpdateMenu(ctx context.Context, id int64, f MenuFields) (Menu, error) {
	m, ok := t.s.menus[id]
	if !ok {
		return Menu{}, ErrNotFound
	}
	t.s.menuUpdates++
	m.Name, m.RestaurantID, m.Order, m.ImageURL = f.Name, f.RestaurantID, f.Order, f.ImageURL
	t.s.menus[id] = m
	return m, nil
}

func (t *memTx) DeleteMenu(ctx context.Context, id int64) error {
	if _, ok := t.s.menus[id]; !ok {
		return ErrNotFound
	}
	delete(t.s.menus, id)
	return nil
}

func (t *memTx) MenuExists(ctx context.Context, id int64) (bool, error) {
	_, ok := t.s.menus[id]
	return ok, nil
}

func (t *memTx) CreateItem(ctx context.Context, f ItemFields) (Item, error) {
	if err := t.injected("CreateItem"); err != nil {
		return Item{}, err
	}
	it := Item{ID: t.s.nextItem, Name: f.Name, Price: f.Price, Order: f.Order, ImageURL: f.ImageURL, MenuID: f.MenuID}
	t.s.nextItem++
	t.s.items[it.ID] = it
	return it, nil
}

func (t *memTx) FindItem(ctx context.Context, id int64) (Item, error) {
	it, ok := t.s.items[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	return it, nil
}

func (t *memTx) UpdateItem(ctx context.Context, id int64, f ItemFields) (Item, error) {
	it, ok := t.s.items[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	t.s.itemUpdates++
	it.Name, it.Price, it.Order, it.ImageURL, it.MenuID = f.Name, f.Price, f.Order, f.ImageURL, f.MenuID
	t.s.items[id] = it
	return it, nil
}

func (t *memTx) DeleteItem(ctx context.Context, id int64) error {
	if _, ok := t.s.items[id]; !ok {
		return ErrNotFound
	}
	delete(t.s.items, id)
	return nil
}

func (t *memTx) RestaurantExists(ctx context.Context, id int64) (bool, error) {
	if err := t.injected("RestaurantExists"); err != nil {
		return false, err
	}
	return t.s.restaurants[id], nil
}

func (t *memTx) Savepoint(ctx context.Context, name string) error {
	t.savepoints[name] = t.s.snapshot()
	return nil
}

func (t *memTx) RollbackTo(ctx context.Context, name string) error {
	t.s.restore(t.savepoints[name])
	return nil
}

func (t *memTx) Release(ctx context.Context, name string) error {
	delete(t.savepoints, name)
	return nil
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []ChangeEvent
}

func (p *recordingPublisher) PublishChange(ctx context.Context, ev ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}
