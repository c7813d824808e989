package teable

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// DefaultPageSize is the backend's page-size cap for record listings.
const DefaultPageSize = 100

// QueryOptions shapes a record listing.
type QueryOptions struct {
	Filter *Filter
	Take   int
	Skip   int
}

// ListRecords fetches a single page of records from a table.
func (c *Client) ListRecords(ctx context.Context, tableID string, opts QueryOptions) ([]Record, error) {
	params := url.Values{}
	params.Set("fieldKeyType", "id")
	if opts.Filter != nil {
		params.Set("filter", opts.Filter.Encode())
	}
	if opts.Take > 0 {
		params.Set("take", strconv.Itoa(opts.Take))
	}
	if opts.Skip > 0 {
		params.Set("skip", strconv.Itoa(opts.Skip))
	}

	body, err := c.fetchJSON(ctx, http.MethodGet, "/table/"+tableID+"/record"+queryString(params), nil)
	if err != nil {
		return nil, err
	}
	return DecodeRecords(body), nil
}

// ListAllRecords accumulates pages until a short page signals
// end-of-data, up to maxPages. A short page has fewer records than the
// page size. The second return value is true when the result was cut off
// at the page ceiling rather than at end-of-data, so callers can surface
// a truncation signal instead of silently returning a partial listing.
func (c *Client) ListAllRecords(ctx context.Context, tableID string, filter *Filter, pageSize, maxPages int) ([]Record, bool, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if maxPages <= 0 {
		maxPages = 1
	}

	var all []Record
	for page := 0; page < maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return all, false, err
		}
		records, err := c.ListRecords(ctx, tableID, QueryOptions{
			Filter: filter,
			Take:   pageSize,
			Skip:   page * pageSize,
		})
		if err != nil {
			return nil, false, err
		}
		all = append(all, records...)
		if len(records) < pageSize {
			return all, false, nil
		}
	}
	return all, true, nil
}

// CreateRecord inserts one record. typecast is always requested: the
// dashboard collects values as loosely typed strings and the backend
// coerces them into the field's declared type. Not idempotent; there is
// no client-supplied idempotency key.
func (c *Client) CreateRecord(ctx context.Context, tableID string, fields map[string]any) (Record, error) {
	payload, err := json.Marshal(map[string]any{
		"records":      []map[string]any{{"fields": fields}},
		"fieldKeyType": "id",
		"typecast":     true,
	})
	if err != nil {
		return Record{}, err
	}

	body, err := c.fetchJSON(ctx, http.MethodPost, "/table/"+tableID+"/record", payload)
	if err != nil {
		return Record{}, err
	}
	rec, ok := FirstRecord(body)
	if !ok {
		return Record{}, fmt.Errorf("backend create response contained no record")
	}
	return rec, nil
}

// UpdateRecord patches one record's fields, with typecast.
func (c *Client) UpdateRecord(ctx context.Context, tableID, recordID string, fields map[string]any) (Record, error) {
	payload, err := json.Marshal(map[string]any{
		"record":       map[string]any{"fields": fields},
		"fieldKeyType": "id",
		"typecast":     true,
	})
	if err != nil {
		return Record{}, err
	}

	body, err := c.fetchJSON(ctx, http.MethodPatch, "/table/"+tableID+"/record/"+recordID, payload)
	if err != nil {
		return Record{}, err
	}
	rec, ok := FirstRecord(body)
	if !ok {
		// Some backend versions answer a PATCH with an empty body.
		rec = Record{ID: recordID, Fields: fields}
	}
	return rec, nil
}

// DeleteRecord removes one record.
func (c *Client) DeleteRecord(ctx context.Context, tableID, recordID string) error {
	_, err := c.fetchJSON(ctx, http.MethodDelete, "/table/"+tableID+"/record/"+recordID, nil)
	return err
}

// ListFields introspects a table's field schema.
func (c *Client) ListFields(ctx context.Context, tableID string) ([]byte, error) {
	return c.fetchJSON(ctx, http.MethodGet, "/table/"+tableID+"/field", nil)
}

// LinkValue serializes a link-field value in the backend's wire format: a
// link is always an array of referenced record identifiers, even for a
// single link, and null when cleared. Writing a bare scalar silently
// corrupts the relationship on the backend side.
func LinkValue(ids ...string) any {
	cleaned := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			cleaned = append(cleaned, id)
		}
	}
	if len(cleaned) == 0 {
		return nil
	}
	return cleaned
}
