package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fleetdesk/fleetdesk/internal/audit"
	"github.com/fleetdesk/fleetdesk/internal/teable"
	"github.com/fleetdesk/fleetdesk/internal/tenant"
)

// fieldGroups maps logical tables to their field group in the tenant
// config.
var fieldGroups = map[string]string{
	tenant.TableWorkSchedule: tenant.GroupWorkSchedule,
	tenant.TableDrivers:      tenant.GroupDrivers,
	tenant.TableCustomers:    tenant.GroupCustomers,
	tenant.TableVehicles:     tenant.GroupVehicles,
}

// linkFields names the logical fields with the backend's linked-record
// semantics, per field group. Their values go on the wire as an array of
// record identifiers or null, never a bare scalar.
var linkFields = map[string]map[string]bool{
	tenant.GroupWorkSchedule: {
		tenant.FieldCustomer:    true,
		tenant.FieldDriver:      true,
		tenant.FieldVehicleType: true,
	},
	tenant.GroupVehicles: {
		tenant.FieldVehicleType: true,
	},
}

type validationError struct {
	field string
	msg   string
}

func (e *validationError) Error() string {
	return fmt.Sprintf("%s: %s", e.field, e.msg)
}

// mapFields translates a body of logical field names into backend field
// identifiers via the tenant config, normalizing link-field values.
// Unknown logical names are rejected rather than passed through, so no
// opaque identifier can sneak around the per-tenant mapping.
func mapFields(cfg *tenant.Config, group string, in map[string]any) (map[string]any, error) {
	if len(in) == 0 {
		return nil, &validationError{field: "fields", msg: "at least one field is required"}
	}

	links := linkFields[group]
	out := make(map[string]any, len(in))
	for name, value := range in {
		fieldID, ok := cfg.FieldID(group, name)
		if !ok || fieldID == "" {
			return nil, &validationError{field: name, msg: "unknown field"}
		}
		if links[name] {
			value = normalizeLink(value)
		}
		out[fieldID] = value
	}
	return out, nil
}

// normalizeLink coerces a loosely typed link value into the wire shape.
func normalizeLink(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		return teable.LinkValue(v)
	case []string:
		return teable.LinkValue(v...)
	case []any:
		ids := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				ids = append(ids, s)
			}
		}
		return teable.LinkValue(ids...)
	default:
		return value
	}
}

// listResource returns the list handler for a simple resource table.
func (h *Handler) listResource(table string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client, tc, err := h.gateway(r)
		if err != nil {
			h.respondFailure(w, r, err)
			return
		}
		id, err := tableID(tc, table)
		if err != nil {
			h.respondFailure(w, r, err)
			return
		}

		start := time.Now()
		defer h.observeUpstream(r.Context(), start)

		take, skip, paged := pagination(r)
		if paged {
			records, err := client.ListRecords(r.Context(), id, teable.QueryOptions{Take: take, Skip: skip})
			if err != nil {
				h.respondFailure(w, r, err)
				return
			}
			respondJSON(w, http.StatusOK, map[string]any{"records": records})
			return
		}

		records, truncated, err := client.ListAllRecords(r.Context(), id, nil, h.upstream.PageSize, h.upstream.MaxPages)
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
}

func (h *Handler) createResource(table string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		h.createInTable(w, r, table, fieldGroups[table], body)
	}
}

func (h *Handler) updateResource(table string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		h.updateInTable(w, r, table, fieldGroups[table], chi.URLParam(r, "recordID"), body)
	}
}

func (h *Handler) deleteResource(table string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.deleteInTable(w, r, table, chi.URLParam(r, "recordID"))
	}
}

func (h *Handler) createInTable(w http.ResponseWriter, r *http.Request, table, group string, body map[string]any) {
	client, tc, err := h.gateway(r)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	id, err := tableID(tc, table)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	fields, err := mapFields(tc.Config, group, body)
	if err != nil {
		respondValidation(w, err)
		return
	}

	start := time.Now()
	defer h.observeUpstream(r.Context(), start)

	rec, err := client.CreateRecord(r.Context(), id, fields)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}

	h.auditLogger.Log(r.Context(), audit.Event{
		Type:      audit.TypeRecordCreated,
		TenantID:  tc.TenantID,
		Resource:  table,
		IPAddress: getIPAddress(r),
		Metadata:  map[string]any{"record_id": rec.ID},
	})
	respondJSON(w, http.StatusCreated, map[string]any{"records": []teable.Record{rec}})
}

func (h *Handler) updateInTable(w http.ResponseWriter, r *http.Request, table, group, recordID string, body map[string]any) {
	if err := validateRecordID(recordID); err != nil {
		respondValidation(w, err)
		return
	}
	client, tc, err := h.gateway(r)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	id, err := tableID(tc, table)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	fields, err := mapFields(tc.Config, group, body)
	if err != nil {
		respondValidation(w, err)
		return
	}

	start := time.Now()
	defer h.observeUpstream(r.Context(), start)

	rec, err := client.UpdateRecord(r.Context(), id, recordID, fields)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}

	h.auditLogger.Log(r.Context(), audit.Event{
		Type:      audit.TypeRecordUpdated,
		TenantID:  tc.TenantID,
		Resource:  table,
		IPAddress: getIPAddress(r),
		Metadata:  map[string]any{"record_id": recordID},
	})
	respondJSON(w, http.StatusOK, map[string]any{"records": []teable.Record{rec}})
}

func (h *Handler) deleteInTable(w http.ResponseWriter, r *http.Request, table, recordID string) {
	if err := validateRecordID(recordID); err != nil {
		respondValidation(w, err)
		return
	}
	client, tc, err := h.gateway(r)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	id, err := tableID(tc, table)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}

	start := time.Now()
	defer h.observeUpstream(r.Context(), start)

	if err := client.DeleteRecord(r.Context(), id, recordID); err != nil {
		h.respondFailure(w, r, err)
		return
	}

	h.auditLogger.Log(r.Context(), audit.Event{
		Type:      audit.TypeRecordDeleted,
		TenantID:  tc.TenantID,
		Resource:  table,
		IPAddress: getIPAddress(r),
		Metadata:  map[string]any{"record_id": recordID},
	})
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

func validateRecordID(recordID string) error {
	if recordID == "" {
		return &validationError{field: "recordId", msg: "is required"}
	}
	if len(recordID) > 64 {
		return &validationError{field: "recordId", msg: "malformed"}
	}
	return nil
}

func respondValidation(w http.ResponseWriter, err error) {
	var ve *validationError
	if errors.As(err, &ve) {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error":   "validation failed",
			"field":   ve.field,
			"details": ve.msg,
		})
		return
	}
	respondError(w, http.StatusBadRequest, err.Error())
}
