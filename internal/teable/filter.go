package teable

import "encoding/json"

// Filter is the backend's filter-expression format: a conjunction over
// field predicates, fields addressed by opaque identifier.
type Filter struct {
	Conjunction string            `json:"conjunction"`
	FilterSet   []FilterCondition `json:"filterSet"`
}

// FilterCondition is one predicate in a filter set.
type FilterCondition struct {
	FieldID  string `json:"fieldId"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// DateEquals builds an exact-day match for a date field, expressed the
// way the backend expects it: a closed range, on-or-after AND
// on-or-before the same day.
func DateEquals(fieldID, date string) Filter {
	return Filter{
		Conjunction: "and",
		FilterSet: []FilterCondition{
			{FieldID: fieldID, Operator: "isOnOrAfter", Value: date},
			{FieldID: fieldID, Operator: "isOnOrBefore", Value: date},
		},
	}
}

// Encode serializes the filter for the backend's filter query parameter.
func (f Filter) Encode() string {
	data, err := json.Marshal(f)
	if err != nil {
		return ""
	}
	return string(data)
}
