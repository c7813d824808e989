package teable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// UploadSignature is the backend's response to a signature request: a
// pre-authorized destination for a direct upload plus the token used to
// confirm it.
type UploadSignature struct {
	Token         string            `json:"token"`
	UploadURL     string            `json:"url"`
	UploadMethod  string            `json:"uploadMethod"`
	RequestHeader map[string]string `json:"requestHeaders"`
}

// SignUpload asks the backend for an upload signature.
func (c *Client) SignUpload(ctx context.Context, contentType string, contentLength int64) (*UploadSignature, error) {
	payload, err := json.Marshal(map[string]any{
		"type":          1,
		"contentType":   contentType,
		"contentLength": contentLength,
	})
	if err != nil {
		return nil, err
	}

	body, err := c.fetchJSON(ctx, http.MethodPost, "/attachments/signature", payload)
	if err != nil {
		return nil, err
	}
	var sig UploadSignature
	if err := json.Unmarshal(body, &sig); err != nil {
		return nil, fmt.Errorf("decode upload signature: %w", err)
	}
	return &sig, nil
}

// NotifyUpload confirms a completed direct upload and returns the
// backend's attachment descriptor for use as a field value.
func (c *Client) NotifyUpload(ctx context.Context, token string) (map[string]any, error) {
	body, err := c.fetchJSON(ctx, http.MethodPost, "/attachments/notify/"+token, nil)
	if err != nil {
		return nil, err
	}
	var attachment map[string]any
	if err := json.Unmarshal(body, &attachment); err != nil {
		return nil, fmt.Errorf("decode attachment notify response: %w", err)
	}
	return attachment, nil
}

// PresignedURL resolves an attachment token to a short-lived download URL.
func (c *Client) PresignedURL(ctx context.Context, token string) (string, error) {
	body, err := c.fetchJSON(ctx, http.MethodGet, "/attachments/"+token+"/presignedUrl", nil)
	if err != nil {
		return "", err
	}
	// The backend answers either a JSON-quoted string or {url: ...}.
	var asString string
	if err := json.Unmarshal(body, &asString); err == nil && asString != "" {
		return asString, nil
	}
	var asObject struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &asObject); err == nil && asObject.URL != "" {
		return asObject.URL, nil
	}
	return "", fmt.Errorf("decode presigned url response")
}

// UploadSigned sends the file bytes to the pre-authorized destination
// from an upload signature. The destination is object storage, not the
// table API: no bearer credential is attached, only the headers the
// signature prescribes.
func (c *Client) UploadSigned(ctx context.Context, sig *UploadSignature, contentType string, file io.Reader) error {
	method := sig.UploadMethod
	if method == "" {
		method = http.MethodPut
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, sig.UploadURL, file)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range sig.RequestHeader {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return &UpstreamError{StatusCode: resp.StatusCode, Body: body}
	}
	return nil
}

// UploadToRecord uses the backend's direct multipart shortcut to attach a
// file to a record field in a single call.
func (c *Client) UploadToRecord(ctx context.Context, tableID, recordID, fieldID, filename string, file io.Reader) (Record, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return Record{}, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return Record{}, err
	}
	if err := mw.Close(); err != nil {
		return Record{}, err
	}

	path := "/table/" + tableID + "/record/" + recordID + "/" + fieldID + "/uploadAttachment"
	body, _, err := c.Fetch(ctx, http.MethodPost, path, mw.FormDataContentType(), &buf)
	if err != nil {
		return Record{}, err
	}
	rec, ok := FirstRecord(body)
	if !ok {
		return Record{}, fmt.Errorf("backend upload response contained no record")
	}
	return rec, nil
}
