package teable

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Record is a single backend record in normalized form.
type Record struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// DecodeRecords normalizes the backend's inconsistent response envelopes
// into a flat record slice. The backend wraps bulk responses as
// {records: [...]} but some legacy single-record endpoints answer with a
// bare {id, fields} object; callers always get []Record regardless.
func DecodeRecords(body []byte) []Record {
	if len(body) == 0 {
		return nil
	}

	if arr := gjson.GetBytes(body, "records"); arr.Exists() && arr.IsArray() {
		var out []Record
		arr.ForEach(func(_, item gjson.Result) bool {
			out = append(out, decodeRecord(item))
			return true
		})
		return out
	}

	if gjson.GetBytes(body, "id").Exists() {
		return []Record{decodeRecord(gjson.ParseBytes(body))}
	}

	return nil
}

// FirstRecord extracts the sole usable record from a mutation response,
// whichever envelope the backend chose.
func FirstRecord(body []byte) (Record, bool) {
	records := DecodeRecords(body)
	if len(records) == 0 {
		return Record{}, false
	}
	return records[0], true
}

func decodeRecord(item gjson.Result) Record {
	rec := Record{ID: item.Get("id").String()}
	if fields := item.Get("fields"); fields.Exists() {
		var m map[string]any
		if err := json.Unmarshal([]byte(fields.Raw), &m); err == nil {
			rec.Fields = m
		}
	}
	return rec
}
