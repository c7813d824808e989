package http

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/fleetdesk/fleetdesk/internal/audit"
	"github.com/fleetdesk/fleetdesk/internal/tenant"
)

const maxUploadBytes = 32 << 20

// attachmentTarget locates the record field an attachment operation
// addresses: logical table and field names plus the record identifier.
type attachmentTarget struct {
	Table    string
	Field    string
	RecordID string
}

func attachmentTargetFromForm(r *http.Request) (attachmentTarget, error) {
	t := attachmentTarget{
		Table:    r.FormValue("table"),
		Field:    r.FormValue("field"),
		RecordID: r.FormValue("recordId"),
	}
	if t.Table == "" {
		t.Table = tenant.TableWorkSchedule
	}
	if t.Field == "" {
		t.Field = tenant.FieldOrderFormAttachment
	}
	if err := validateRecordID(t.RecordID); err != nil {
		return t, err
	}
	return t, nil
}

func (h *Handler) attachmentField(tc *tenant.Context, t attachmentTarget) (tableID, fieldID string, err error) {
	table, ok := tc.Config.TableID(t.Table)
	if !ok || table == "" {
		return "", "", &validationError{field: "table", msg: "unknown table"}
	}
	group, ok := fieldGroups[t.Table]
	if !ok {
		return "", "", &validationError{field: "table", msg: "unknown table"}
	}
	field, ok := tc.Config.FieldID(group, t.Field)
	if !ok || field == "" {
		return "", "", &validationError{field: "field", msg: "unknown field"}
	}
	return table, field, nil
}

// UploadAttachment runs the three-step upload sequence: request an
// upload signature, push the bytes to the pre-authorized destination,
// then notify the backend and write the resulting attachment descriptor
// into the target field.
func (h *Handler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	target, err := attachmentTargetFromForm(r)
	if err != nil {
		respondValidation(w, err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondValidation(w, &validationError{field: "file", msg: "is required"})
		return
	}
	defer file.Close()

	client, tc, err := h.gateway(r)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	table, field, err := h.attachmentField(tc, target)
	if err != nil {
		respondValidation(w, err)
		return
	}

	contentType := header.Header.Get("Content-Type")
	sig, err := client.SignUpload(r.Context(), contentType, header.Size)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	if err := client.UploadSigned(r.Context(), sig, contentType, file); err != nil {
		h.respondFailure(w, r, err)
		return
	}
	attachment, err := client.NotifyUpload(r.Context(), sig.Token)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}

	rec, err := client.UpdateRecord(r.Context(), table, target.RecordID, map[string]any{
		field: []any{attachment},
	})
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}

	h.auditLogger.Log(r.Context(), audit.Event{
		Type:      audit.TypeAttachmentUploaded,
		TenantID:  tc.TenantID,
		Resource:  target.Table,
		IPAddress: getIPAddress(r),
		Metadata:  map[string]any{"record_id": target.RecordID, "filename": header.Filename},
	})
	respondJSON(w, http.StatusOK, map[string]any{"record": rec})
}

// ReplaceFile is UploadAttachment with replace semantics: whatever the
// field held before is overwritten by the new attachment.
func (h *Handler) ReplaceFile(w http.ResponseWriter, r *http.Request) {
	h.UploadAttachment(w, r)
}

// UploadToRecord uses the backend's single-call multipart shortcut.
func (h *Handler) UploadToRecord(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	target, err := attachmentTargetFromForm(r)
	if err != nil {
		respondValidation(w, err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondValidation(w, &validationError{field: "file", msg: "is required"})
		return
	}
	defer file.Close()

	client, tc, err := h.gateway(r)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	table, field, err := h.attachmentField(tc, target)
	if err != nil {
		respondValidation(w, err)
		return
	}

	rec, err := client.UploadToRecord(r.Context(), table, target.RecordID, field, header.Filename, file)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}

	h.auditLogger.Log(r.Context(), audit.Event{
		Type:      audit.TypeAttachmentUploaded,
		TenantID:  tc.TenantID,
		Resource:  target.Table,
		IPAddress: getIPAddress(r),
		Metadata:  map[string]any{"record_id": target.RecordID, "filename": header.Filename},
	})
	respondJSON(w, http.StatusOK, map[string]any{"record": rec})
}

// ViewFile resolves an attachment token to a presigned URL and streams
// the file back inline.
func (h *Handler) ViewFile(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondValidation(w, &validationError{field: "token", msg: "is required"})
		return
	}

	client, _, err := h.gateway(r)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}

	url, err := client.PresignedURL(r.Context(), token)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, url, nil)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respondError(w, http.StatusBadGateway, "failed to fetch file")
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(filepath.Ext(r.URL.Query().Get("filename"))); byExt != "" {
			contentType = byExt
		} else {
			contentType = "application/octet-stream"
		}
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "inline")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; img-src 'self'; style-src 'unsafe-inline'")
	w.WriteHeader(http.StatusOK)
	io.Copy(w, resp.Body)
}

// DeleteAttachmentRequest nullifies an attachment field.
type DeleteAttachmentRequest struct {
	Table    string `json:"table"`
	Field    string `json:"field"`
	RecordID string `json:"recordId"`
}

// DeleteAttachment clears the target attachment field. The stored object
// itself is left to the backend's own garbage collection.
func (h *Handler) DeleteAttachment(w http.ResponseWriter, r *http.Request) {
	var req DeleteAttachmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	target := attachmentTarget{Table: req.Table, Field: req.Field, RecordID: req.RecordID}
	if target.Table == "" {
		target.Table = tenant.TableWorkSchedule
	}
	if target.Field == "" {
		target.Field = tenant.FieldOrderFormAttachment
	}
	if err := validateRecordID(target.RecordID); err != nil {
		respondValidation(w, err)
		return
	}

	client, tc, err := h.gateway(r)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	table, field, err := h.attachmentField(tc, target)
	if err != nil {
		respondValidation(w, err)
		return
	}

	if _, err := client.UpdateRecord(r.Context(), table, target.RecordID, map[string]any{field: nil}); err != nil {
		h.respondFailure(w, r, err)
		return
	}

	h.auditLogger.Log(r.Context(), audit.Event{
		Type:      audit.TypeAttachmentRemoved,
		TenantID:  tc.TenantID,
		Resource:  target.Table,
		IPAddress: getIPAddress(r),
		Metadata:  map[string]any{"record_id": target.RecordID},
	})
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}
