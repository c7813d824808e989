// Copyright 2026 The FleetDesk Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fleetdesk/fleetdesk/internal/audit"
	"github.com/fleetdesk/fleetdesk/internal/queue"
	"github.com/fleetdesk/fleetdesk/internal/teable"
	"github.com/fleetdesk/fleetdesk/internal/tenant"
)

// ListWorkSchedule lists schedule rows, optionally filtered to an exact
// date and paginated with take/skip. Without explicit pagination the
// handler accumulates backend pages up to the configured ceiling and
// flags truncation instead of looping unbounded.
func (h *Handler) ListWorkSchedule(w http.ResponseWriter, r *http.Request) {
	client, tc, err := h.gateway(r)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	table, err := tableID(tc, tenant.TableWorkSchedule)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}

	var filter *teable.Filter
	if date := r.URL.Query().Get("date"); date != "" {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			respondError(w, http.StatusBadRequest, "invalid date: expected YYYY-MM-DD")
			return
		}
		fieldID, ok := tc.Config.FieldID(tenant.GroupWorkSchedule, tenant.FieldDate)
		if !ok {
			h.respondFailure(w, r, teable.ErrTableNotConfigured)
			return
		}
		f := teable.DateEquals(fieldID, date)
		filter = &f
	}

	start := time.Now()
	defer h.observeUpstream(r.Context(), start)

	take, skip, paged := pagination(r)
	if paged {
		records, err := client.ListRecords(r.Context(), table, teable.QueryOptions{
			Filter: filter,
			Take:   take,
			Skip:   skip,
		})
		if err != nil {
			h.respondFailure(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"records": records})
		return
	}

	records, truncated, err := client.ListAllRecords(r.Context(), table, filter, h.upstream.PageSize, h.upstream.MaxPages)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	resp := map[string]any{"records": records}
	if truncated {
		resp["truncated"] = true
	}
	respondJSON(w, http.StatusOK, resp)
}

// CreateWorkSchedule inserts one schedule row. The body maps logical
// field names to values; identifiers are resolved through the tenant
// config and link fields are normalized to the backend's array shape.
func (h *Handler) CreateWorkSchedule(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.createInTable(w, r, tenant.TableWorkSchedule, tenant.GroupWorkSchedule, body)
}

// UpdateWorkSchedule patches one schedule row.
func (h *Handler) UpdateWorkSchedule(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.updateInTable(w, r, tenant.TableWorkSchedule, tenant.GroupWorkSchedule, chi.URLParam(r, "recordID"), body)
}

// DeleteWorkSchedule removes one schedule row.
func (h *Handler) DeleteWorkSchedule(w http.ResponseWriter, r *http.Request) {
	h.deleteInTable(w, r, tenant.TableWorkSchedule, chi.URLParam(r, "recordID"))
}

// BatchItem is one mutation in a batch request.
type BatchItem struct {
	RecordID string         `json:"recordId,omitempty"`
	Fields   map[string]any `json:"fields,omitempty"`
}

// BatchRequest is a bulk mutation over the work schedule. Items run
// through the request queue with bounded concurrency; each item's
// outcome is independent and nothing is rolled back on partial failure.
// Re-submitting a create batch after a partial failure can create
// duplicates: creates carry no idempotency key.
type BatchRequest struct {
	Operation string      `json:"operation"`
	Items     []BatchItem `json:"items"`
}

// BatchItemResult reports one item's outcome.
type BatchItemResult struct {
	Index    int    `json:"index"`
	RecordID string `json:"recordId,omitempty"`
	Error    string `json:"error,omitempty"`
}

// BatchWorkSchedule executes a bulk create/update/delete.
func (h *Handler) BatchWorkSchedule(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Operation != "create" && req.Operation != "update" && req.Operation != "delete" {
		respondError(w, http.StatusBadRequest, "operation must be create, update or delete")
		return
	}
	if len(req.Items) == 0 {
		respondError(w, http.StatusBadRequest, "items must not be empty")
		return
	}

	client, tc, err := h.gateway(r)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	table, err := tableID(tc, tenant.TableWorkSchedule)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}

	results := make([]BatchItemResult, len(req.Items))
	tasks := make([]queue.Task, len(req.Items))
	for i, item := range req.Items {
		i, item := i, item
		results[i].Index = i
		tasks[i] = func(ctx context.Context) error {
			switch req.Operation {
			case "create":
				fields, err := mapFields(tc.Config, tenant.GroupWorkSchedule, item.Fields)
				if err != nil {
					return err
				}
				rec, err := client.CreateRecord(ctx, table, fields)
				if err != nil {
					return err
				}
				results[i].RecordID = rec.ID
				return nil
			case "update":
				if item.RecordID == "" {
					return fmt.Errorf("recordId is required")
				}
				fields, err := mapFields(tc.Config, tenant.GroupWorkSchedule, item.Fields)
				if err != nil {
					return err
				}
				_, err = client.UpdateRecord(ctx, table, item.RecordID, fields)
				results[i].RecordID = item.RecordID
				return err
			default:
				if item.RecordID == "" {
					return fmt.Errorf("recordId is required")
				}
				results[i].RecordID = item.RecordID
				return client.DeleteRecord(ctx, table, item.RecordID)
			}
		}
	}

	batch := h.queue.DoBatch(r.Context(), tasks, nil)
	for i := range results {
		if err, ok := batch.Errors[i]; ok {
			results[i].Error = err.Error()
		}
	}

	h.auditLogger.Log(r.Context(), audit.Event{
		Type:      auditTypeForOperation(req.Operation),
		TenantID:  tc.TenantID,
		Resource:  tenant.TableWorkSchedule,
		IPAddress: getIPAddress(r),
		Metadata: map[string]any{
			"batch":     true,
			"succeeded": batch.Succeeded,
			"failed":    batch.Failed,
		},
	})

	respondJSON(w, http.StatusOK, map[string]any{
		"succeeded": batch.Succeeded,
		"failed":    batch.Failed,
		"results":   results,
	})
}

func auditTypeForOperation(op string) string {
	switch op {
	case "create":
		return audit.TypeRecordCreated
	case "update":
		return audit.TypeRecordUpdated
	default:
		return audit.TypeRecordDeleted
	}
}

func pagination(r *http.Request) (take, skip int, ok bool) {
	q := r.URL.Query()
	if q.Get("take") == "" && q.Get("skip") == "" {
		return 0, 0, false
	}
	take, _ = strconv.Atoi(q.Get("take"))
	skip, _ = strconv.Atoi(q.Get("skip"))
	if take <= 0 {
		take = teable.DefaultPageSize
	}
	if skip < 0 {
		skip = 0
	}
	return take, skip, true
}
