package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/menusync/internal/config"
	"github.com/JonMunkholm/menusync/internal/logging"
)

// SyncMode is the commit policy for a batch that has failed rows.
type SyncMode string

const (
	// ModePartial undoes each failed row and commits every successful one.
	ModePartial SyncMode = "partial"
	// ModeAtomic rolls back the whole batch when any row fails.
	ModeAtomic SyncMode = "atomic"
)

// Service applies batches of menu and item operations to a Store.
type Service struct {
	store     Store
	publisher Publisher
	limiter   *SyncLimiter

	mode            SyncMode
	maxRows         int
	timeout         time.Duration
	validateParents bool
}

// NewService creates a Service over store using the sync settings in cfg.
func NewService(store Store, cfg config.SyncConfig) *Service {
	mode := SyncMode(strings.ToLower(cfg.Mode))
	if mode != ModeAtomic {
		mode = ModePartial
	}

	return &Service{
		store:           store,
		publisher:       NopPublisher{},
		limiter:         NewSyncLimiter(cfg.MaxConcurrent, cfg.MaxWaitTime),
		mode:            mode,
		maxRows:         cfg.MaxRows,
		timeout:         cfg.Timeout,
		validateParents: cfg.ValidateParents,
	}
}

// SetPublisher installs the publisher notified after each committed batch.
func (s *Service) SetPublisher(p Publisher) {
	if p == nil {
		p = NopPublisher{}
	}
	s.publisher = p
}

// Mode returns the configured commit policy.
func (s *Service) Mode() SyncMode {
	return s.mode
}

// LimiterStatus returns the state of the batch limiter.
func (s *Service) LimiterStatus() SyncLimiterStatus {
	return s.limiter.Status()
}

// WaitForBatches blocks until in-flight batches finish or ctx is done.
func (s *Service) WaitForBatches(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// MaxMenuID returns the highest menu id so clients can predict the ids of
// menus they are about to insert.
func (s *Service) MaxMenuID(ctx context.Context) (int64, error) {
	id, err := s.store.MaxMenuID(ctx)
	if err != nil {
		return 0, fmt.Errorf("max menu id: %w", err)
	}
	return id, nil
}

// Ping checks that the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ApplyBatch applies a mixed menu/item batch.
//
// Rows run one at a time in the order given, so a row may reference a menu
// inserted by an earlier row. A failed row is reported and processing moves
// on; only store failures unrelated to the row itself abort the batch.
func (s *Service) ApplyBatch(ctx context.Context, rows []BatchRow) (*BatchResult, error) {
	return s.apply(ctx, rows, MenusItemsSyncedMessage)
}

// ApplyMenuBatch applies a menus-only batch.
func (s *Service) ApplyMenuBatch(ctx context.Context, rows []MenuRow) (*BatchResult, error) {
	converted := make([]BatchRow, len(rows))
	for i, r := range rows {
		converted[i] = r.BatchRow()
	}
	return s.apply(ctx, converted, MenusSyncedMessage)
}

func (s *Service) apply(ctx context.Context, rows []BatchRow, successMessage string) (*BatchResult, error) {
	if rows == nil {
		return nil, ErrMalformedBatch
	}
	if s.maxRows > 0 && len(rows) > s.maxRows {
		return nil, fmt.Errorf("%w: %d rows exceeds limit of %d", ErrBatchTooLarge, len(rows), s.maxRows)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	batchID := uuid.NewString()
	logger := logging.WithFields(ctx,
		"batch_id", batchID,
		"rows", len(rows),
		"mode", string(s.mode),
	)
	logger.Info("batch started",
		"ip", GetIPAddressFromContext(ctx),
		"user_agent", GetUserAgentFromContext(ctx),
		"actor", GetActorFromContext(ctx),
	)
	start := time.Now()

	var outcomes []RowOutcome
	err := s.store.InTx(ctx, func(tx Tx) error {
		outcomes = make([]RowOutcome, 0, len(rows))
		b := newBatchRun(tx, s.validateParents)

		for i, row := range rows {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("batch cancelled at row %d: %w", i, err)
			}

			out, err := b.applyRow(ctx, i, row)
			if err != nil {
				return fmt.Errorf("row %d: %w", i, err)
			}
			if out.Err != nil {
				logger.Debug("row failed", "index", i, "action", row.Action, "error", out.Err)
			}
			outcomes = append(outcomes, out)
		}

		if s.mode == ModeAtomic && anyFailed(outcomes) {
			return errAtomicRollback
		}
		return nil
	})

	committed := err == nil
	if err != nil && !errors.Is(err, errAtomicRollback) {
		logger.Error("batch aborted", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("apply batch: %w", err)
	}

	result := Summarize(batchID, outcomes, committed)
	if result.Success {
		result.Message = successMessage
	}

	logger.Info("batch finished",
		"committed", result.Committed,
		"applied", result.Applied,
		"failed", result.Failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if committed && result.Applied > 0 {
		s.publishChange(ctx, batchID, outcomes, result)
	}

	return result, nil
}

func anyFailed(outcomes []RowOutcome) bool {
	for _, o := range outcomes {
		if o.Err != nil {
			return true
		}
	}
	return false
}

// batchRun carries per-batch dependency state across rows.
type batchRun struct {
	tx              Tx
	validateParents bool

	// failedMenus holds ids of menu inserts that failed in this batch.
	failedMenus map[int64]bool
	// deletedMenus holds ids of menus deleted earlier in this batch.
	deletedMenus map[int64]bool
}

func newBatchRun(tx Tx, validateParents bool) *batchRun {
	return &batchRun{
		tx:              tx,
		validateParents: validateParents,
		failedMenus:     make(map[int64]bool),
		deletedMenus:    make(map[int64]bool),
	}
}

// applyRow runs one row. Row failures are returned in the outcome; a
// non-nil error means the batch must abort.
func (b *batchRun) applyRow(ctx context.Context, index int, row BatchRow) (RowOutcome, error) {
	action := ParseAction(row.Action)
	out := RowOutcome{Index: index, Action: action, ParentID: row.ParentID}

	if row.decodeErr != nil {
		if res, err := Resolve(row); err == nil {
			out.Kind, out.ID = res.Kind, res.ID
		} else {
			out.Kind, _ = Classify(row)
		}
		return b.fail(out, row.decodeErr)
	}

	if !action.Valid() {
		out.Kind, _ = Classify(row)
		return b.fail(out, fmt.Errorf("%w %q", ErrUnknownAction, row.Action))
	}

	res, err := Resolve(row)
	out.Kind = res.Kind
	out.ID = res.ID
	if err != nil {
		return b.fail(out, err)
	}

	if err := b.check(ctx, action, res, row); err != nil {
		return b.fail(out, err)
	}

	savepoint := fmt.Sprintf("row_%d", index)
	if err := b.tx.Savepoint(ctx, savepoint); err != nil {
		return out, err
	}

	id, err := b.mutate(ctx, action, res, row)
	if err != nil {
		if _, ok := RowErrorKind(err); !ok {
			return out, err
		}
		if rbErr := b.tx.RollbackTo(ctx, savepoint); rbErr != nil {
			return out, fmt.Errorf("rollback to savepoint: %w", rbErr)
		}
		return b.fail(out, err)
	}

	if err := b.tx.Release(ctx, savepoint); err != nil {
		return out, err
	}

	out.ID = &id
	if res.Kind == EntityMenu {
		switch action {
		case ActionInsert:
			delete(b.failedMenus, id)
			delete(b.deletedMenus, id)
		case ActionDelete:
			b.deletedMenus[id] = true
		}
	}
	return out, nil
}

// fail records err on out. Errors outside the row error kinds abort.
func (b *batchRun) fail(out RowOutcome, err error) (RowOutcome, error) {
	if _, ok := RowErrorKind(err); !ok {
		return out, err
	}
	if out.Kind == EntityMenu && out.Action == ActionInsert && out.ID != nil {
		b.failedMenus[*out.ID] = true
	}
	out.Err = err
	return out, nil
}

// check validates a row before anything is written.
func (b *batchRun) check(ctx context.Context, action Action, res Resolution, row BatchRow) error {
	if action == ActionDelete {
		return nil
	}

	if strings.TrimSpace(row.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRow)
	}

	switch res.Kind {
	case EntityMenu:
		if !b.validateParents {
			return nil
		}
		ok, err := b.tx.RestaurantExists(ctx, row.ParentID)
		if err != nil {
			return fmt.Errorf("check restaurant %d: %w", row.ParentID, err)
		}
		if !ok {
			return fmt.Errorf("%w: restaurant %d does not exist", ErrDanglingParent, row.ParentID)
		}

	case EntityItem:
		price := row.Price.String()
		if price == SentinelPrice {
			return fmt.Errorf("%w: price %q is reserved for menus", ErrInvalidRow, SentinelPrice)
		}
		if !validPrice(price) {
			return fmt.Errorf("%w: price %q is not a decimal amount", ErrInvalidRow, price)
		}
		if b.failedMenus[row.ParentID] {
			return fmt.Errorf("%w: menu %d failed earlier in this batch", ErrDanglingParent, row.ParentID)
		}
		if b.deletedMenus[row.ParentID] {
			return fmt.Errorf("%w: menu %d was deleted earlier in this batch", ErrDanglingParent, row.ParentID)
		}
		if !b.validateParents {
			return nil
		}
		ok, err := b.tx.MenuExists(ctx, row.ParentID)
		if err != nil {
			return fmt.Errorf("check menu %d: %w", row.ParentID, err)
		}
		if !ok {
			return fmt.Errorf("%w: menu %d does not exist", ErrDanglingParent, row.ParentID)
		}
	}

	return nil
}

// validPrice accepts non-negative decimal amounts such as "4", "4.5" and "4.50".
func validPrice(s string) bool {
	if s == "" || strings.ContainsAny(s, "eExX+_") {
		return false
	}
	f, err := strconv.ParseFloat(s, 64)
	return err == nil && f >= 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}

// mutate performs the row's write and returns the id of the affected entity.
func (b *batchRun) mutate(ctx context.Context, action Action, res Resolution, row BatchRow) (int64, error) {
	if res.Kind == EntityMenu {
		return b.mutateMenu(ctx, action, res.ID, MenuFields{
			Name:         row.Name,
			RestaurantID: row.ParentID,
			Order:        row.Order,
			ImageURL:     row.ImageURL,
		})
	}
	return b.mutateItem(ctx, action, res.ID, ItemFields{
		Name:     row.Name,
		Price:    row.Price.String(),
		Order:    row.Order,
		ImageURL: row.ImageURL,
		MenuID:   row.ParentID,
	})
}

func (b *batchRun) mutateMenu(ctx context.Context, action Action, id *int64, f MenuFields) (int64, error) {
	switch action {
	case ActionInsert:
		m, err := b.tx.CreateMenu(ctx, id, f)
		if err != nil {
			return 0, fmt.Errorf("create menu: %w", err)
		}
		return m.ID, nil

	case ActionUpdate:
		existing, err := b.tx.FindMenu(ctx, *id)
		if err != nil {
			return 0, fmt.Errorf("menu %d: %w", *id, err)
		}
		if existing.Matches(f) {
			return existing.ID, nil
		}
		if _, err := b.tx.UpdateMenu(ctx, *id, f); err != nil {
			return 0, fmt.Errorf("update menu %d: %w", *id, err)
		}
		return *id, nil

	default:
		if _, err := b.tx.FindMenu(ctx, *id); err != nil {
			return 0, fmt.Errorf("menu %d: %w", *id, err)
		}
		if err := b.tx.DeleteMenu(ctx, *id); err != nil {
			return 0, fmt.Errorf("delete menu %d: %w", *id, err)
		}
		return *id, nil
	}
}

func (b *batchRun) mutateItem(ctx context.Context, action Action, id *int64, f ItemFields) (int64, error) {
	switch action {
	case ActionInsert:
		it, err := b.tx.CreateItem(ctx, f)
		if err != nil {
			return 0, fmt.Errorf("create item: %w", err)
		}
		return it.ID, nil

	case ActionUpdate:
		existing, err := b.tx.FindItem(ctx, *id)
		if err != nil {
			return 0, fmt.Errorf("item %d: %w", *id, err)
		}
		if existing.Matches(f) {
			return existing.ID, nil
		}
		if _, err := b.tx.UpdateItem(ctx, *id, f); err != nil {
			return 0, fmt.Errorf("update item %d: %w", *id, err)
		}
		return *id, nil

	default:
		if _, err := b.tx.FindItem(ctx, *id); err != nil {
			return 0, fmt.Errorf("item %d: %w", *id, err)
		}
		if err := b.tx.DeleteItem(ctx, *id); err != nil {
			return 0, fmt.Errorf("delete item %d: %w", *id, err)
		}
		return *id, nil
	}
}
