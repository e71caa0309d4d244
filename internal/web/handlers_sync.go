package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/JonMunkholm/menusync/internal/core"
)

// batchRequest is the envelope every batch endpoint accepts.
type batchRequest struct {
	Data json.RawMessage `json:"data"`
}

// handleSyncMenusItems applies a mixed menu/item batch.
func (s *Server) handleSyncMenusItems(w http.ResponseWriter, r *http.Request) {
	rows, err := decodeBatch[core.BatchRow](w, r, s.cfg.Server.MaxBodySize)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	result, err := s.service.ApplyBatch(WithRequestMetadata(r.Context(), r), rows)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, result)
}

// handleSyncMenus applies a menus-only batch.
func (s *Server) handleSyncMenus(w http.ResponseWriter, r *http.Request) {
	rows, err := decodeBatch[core.MenuRow](w, r, s.cfg.Server.MaxBodySize)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	result, err := s.service.ApplyMenuBatch(WithRequestMetadata(r.Context(), r), rows)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, result)
}

// handleMaxMenuID returns the largest menu id, 0 when there are none.
func (s *Server) handleMaxMenuID(w http.ResponseWriter, r *http.Request) {
	id, err := s.service.MaxMenuID(r.Context())
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, id)
}

type healthResponse struct {
	Status  string                 `json:"status"`
	Mode    core.SyncMode          `json:"mode"`
	Batches core.SyncLimiterStatus `json:"batches"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Ping(r.Context()); err != nil {
		s.respondError(w, r, fmt.Errorf("health check: %w", err), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, healthResponse{
		Status:  "ok",
		Mode:    s.service.Mode(),
		Batches: s.service.LimiterStatus(),
	})
}

// decodeBatch reads {"data": [...]} into rows. The body is capped at
// maxBytes when positive. A missing, null or non-array data field is a
// malformed batch; an empty array is a valid batch with no rows. A row
// whose fields have the wrong JSON type still decodes and is reported as
// InvalidRow at its index.
func decodeBatch[T any](w http.ResponseWriter, r *http.Request, maxBytes int64) ([]T, error) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}

	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: request body too large", core.ErrBatchTooLarge)
		}
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedBatch, err)
	}

	data := bytes.TrimSpace(req.Data)
	if len(data) == 0 || data[0] != '[' {
		return nil, core.ErrMalformedBatch
	}

	rows := make([]T, 0)
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedBatch, err)
	}
	return rows, nil
}
