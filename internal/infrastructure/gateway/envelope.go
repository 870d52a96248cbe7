package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/erp/gateway/internal/domain/gateway"
)

// ---------------------------------------------------------------------------
// Query payload (out)
// ---------------------------------------------------------------------------

// QuerySpec describes one root-entity query against the remote CRUD service.
type QuerySpec struct {
	RootEntity string
	Fields     string // comma-separated fieldset list
	Criteria   string // filter expression, empty for none
	OrderBy    string // order expression, empty for none

	// Snapshot disables server-side paging and the row cap; used by the
	// reconciliation engine, which needs the complete collection.
	Snapshot bool
	Offset   int
	Limit    int
}

type expression struct {
	Value string `json:"$"`
}

// BuildQuery renders a QuerySpec into the remote service's request envelope.
func BuildQuery(spec QuerySpec) map[string]any {
	dataSet := map[string]any{
		"rootEntity":                spec.RootEntity,
		"includePresentationFields": "N",
		"entity": map[string]any{
			"fieldset": map[string]any{"list": spec.Fields},
		},
	}

	if spec.Snapshot {
		dataSet["offsetPage"] = nil
		dataSet["disableRowsLimit"] = true
	} else {
		dataSet["offsetPage"] = strconv.Itoa(spec.Offset)
		if spec.Limit > 0 {
			dataSet["limit"] = strconv.Itoa(spec.Limit)
		}
	}

	if spec.Criteria != "" {
		dataSet["criteria"] = map[string]any{"expression": expression{Value: spec.Criteria}}
	}
	if spec.OrderBy != "" {
		dataSet["orderBy"] = map[string]any{"expression": expression{Value: spec.OrderBy}}
	}

	return map[string]any{
		"requestBody": map[string]any{"dataSet": dataSet},
	}
}

// ---------------------------------------------------------------------------
// Query envelope (in)
// ---------------------------------------------------------------------------

type queryResponse struct {
	ResponseBody *struct {
		Entities *entitiesEnvelope `json:"entities"`
	} `json:"responseBody"`
	StatusMessage string `json:"statusMessage"`
}

type entitiesEnvelope struct {
	Metadata struct {
		Fields struct {
			Field []struct {
				Name string `json:"name"`
			} `json:"field"`
		} `json:"fields"`
	} `json:"metadata"`
	// Entity is a bare object for single-result responses and an array
	// otherwise; kept raw and resolved in decode.
	Entity json.RawMessage `json:"entity"`
	Total  json.RawMessage `json:"total"`
}

type fieldValue struct {
	Value json.RawMessage `json:"$"`
}

// DecodeRecords decodes a query response body into name-keyed records plus
// the remote-reported total. An envelope without entities decodes to an
// empty record set, not an error.
func DecodeRecords(body []byte) ([]gateway.Record, int, error) {
	var resp queryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", gateway.ErrInvalidEnvelope, err)
	}

	if resp.ResponseBody == nil || resp.ResponseBody.Entities == nil {
		return nil, 0, nil
	}
	env := resp.ResponseBody.Entities
	if len(env.Entity) == 0 || bytes.Equal(env.Entity, []byte("null")) {
		return nil, 0, nil
	}

	fieldNames := make([]string, len(env.Metadata.Fields.Field))
	for i, f := range env.Metadata.Fields.Field {
		fieldNames[i] = f.Name
	}

	rawEntities, err := entityArray(env.Entity)
	if err != nil {
		return nil, 0, err
	}

	records := make([]gateway.Record, 0, len(rawEntities))
	for _, raw := range rawEntities {
		rec := make(gateway.Record, len(fieldNames))
		for i, name := range fieldNames {
			fv, ok := raw[fmt.Sprintf("f%d", i)]
			if !ok || len(fv.Value) == 0 {
				continue
			}
			rec[name] = rawToString(fv.Value)
		}
		records = append(records, rec)
	}

	total := len(records)
	if n, ok := rawToInt(env.Total); ok {
		total = n
	}

	return records, total, nil
}

// entityArray normalizes the entity payload: single-result responses arrive
// as a bare object rather than a one-element array.
func entityArray(raw json.RawMessage) ([]map[string]fieldValue, error) {
	var list []map[string]fieldValue
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var single map[string]fieldValue
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("%w: entity is neither object nor array", gateway.ErrInvalidEnvelope)
	}
	return []map[string]fieldValue{single}, nil
}

// rawToString renders a scalar JSON value as its string form. Quoted values
// are unquoted; numbers keep their wire text exactly.
func rawToString(raw json.RawMessage) string {
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(bytes.TrimSpace(raw))
}

func rawToInt(raw json.RawMessage) (int, bool) {
	s := rawToString(raw)
	if s == "" || s == "null" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ---------------------------------------------------------------------------
// Save envelope (out)
// ---------------------------------------------------------------------------

// SaveRecord is one record of a save command. Values are keyed by the
// 1-indexed position of the field in the request's field list, distinct
// from the 0-indexed f{i} read convention.
type SaveRecord struct {
	PK     map[string]string `json:"pk,omitempty"`
	Values map[string]any    `json:"values"`
}

// NewSaveRecord builds a SaveRecord from positional values. A nil pk means
// an insert; values[0] maps to key "1".
func NewSaveRecord(pk map[string]string, values []any) SaveRecord {
	rec := SaveRecord{Values: make(map[string]any, len(values))}
	if len(pk) > 0 {
		rec.PK = pk
	}
	for i, v := range values {
		rec.Values[strconv.Itoa(i+1)] = v
	}
	return rec
}

// BuildSave renders a save command envelope for the remote service.
func BuildSave(entityName string, fields []string, records []SaveRecord) map[string]any {
	return map[string]any{
		"serviceName": "DatasetSP.save",
		"requestBody": map[string]any{
			"entityName": entityName,
			"standAlone": false,
			"fields":     fields,
			"records":    records,
		},
	}
}
