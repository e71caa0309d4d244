package core

import "fmt"

// RowStatus is the final state of one batch row.
type RowStatus string

const (
	StatusApplied    RowStatus = "applied"
	StatusFailed     RowStatus = "failed"
	StatusRolledBack RowStatus = "rolled_back"
)

// Legacy success messages, kept so existing clients that only check the
// message keep working.
const (
	MenusItemsSyncedMessage = "Menus and Items data updated successfully!"
	MenusSyncedMessage      = "Menu data updated successfully!"
)

// RowOutcome is what happened to one row while the batch ran.
type RowOutcome struct {
	Index    int
	Action   Action
	Kind     EntityKind
	ID       *int64
	ParentID int64
	Err      error
}

// RowError describes a failed row.
type RowError struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
}

// RowResult is the per-row entry of a BatchResult.
type RowResult struct {
	Index  int        `json:"index"`
	Action Action     `json:"action"`
	Kind   EntityKind `json:"kind,omitempty"`
	ID     *int64     `json:"id,omitempty"`
	Status RowStatus  `json:"status"`
	Error  *RowError  `json:"error,omitempty"`
}

// BatchResult is the response to a batch sync request.
type BatchResult struct {
	BatchID   string      `json:"batch_id"`
	Success   bool        `json:"success"`
	Committed bool        `json:"committed"`
	Applied   int         `json:"applied"`
	Failed    int         `json:"failed"`
	Message   string      `json:"message"`
	Results   []RowResult `json:"results"`
}

// Summarize folds row outcomes into one result, preserving submission order.
// When committed is false no row persisted, so successful rows are reported
// as rolled back.
func Summarize(batchID string, outcomes []RowOutcome, committed bool) *BatchResult {
	result := &BatchResult{
		BatchID:   batchID,
		Committed: committed,
		Results:   make([]RowResult, 0, len(outcomes)),
	}

	for _, o := range outcomes {
		rr := RowResult{
			Index:  o.Index,
			Action: o.Action,
			Kind:   o.Kind,
			ID:     o.ID,
		}

		switch {
		case o.Err != nil:
			kind, _ := RowErrorKind(o.Err)
			rr.Status = StatusFailed
			rr.Error = &RowError{
				Kind:    kind,
				Code:    MapError(o.Err).Code,
				Message: o.Err.Error(),
			}
			result.Failed++
		case committed:
			rr.Status = StatusApplied
			result.Applied++
		default:
			rr.Status = StatusRolledBack
		}

		result.Results = append(result.Results, rr)
	}

	result.Success = committed && result.Failed == 0
	switch {
	case result.Success:
		result.Message = MenusItemsSyncedMessage
	case committed:
		result.Message = fmt.Sprintf("%d of %d rows applied, %d failed",
			result.Applied, len(outcomes), result.Failed)
	default:
		result.Message = fmt.Sprintf("batch rolled back, %d of %d rows failed",
			result.Failed, len(outcomes))
	}

	return result
}
