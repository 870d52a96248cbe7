package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildQuery_Snapshot(t *testing.T) {
	payload := BuildQuery(QuerySpec{
		RootEntity: "Parceiro",
		Fields:     "CODPARC, NOMEPARC",
		Snapshot:   true,
	})

	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded struct {
		RequestBody struct {
			DataSet map[string]json.RawMessage `json:"dataSet"`
		} `json:"requestBody"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	ds := decoded.RequestBody.DataSet
	assert.JSONEq(t, `"Parceiro"`, string(ds["rootEntity"]))
	assert.JSONEq(t, `null`, string(ds["offsetPage"]))
	assert.JSONEq(t, `true`, string(ds["disableRowsLimit"]))
	assert.NotContains(t, ds, "limit")
	assert.NotContains(t, ds, "criteria")
}

func TestBuildQuery_Paged(t *testing.T) {
	payload := BuildQuery(QuerySpec{
		RootEntity: "Parceiro",
		Fields:     "CODPARC, NOMEPARC",
		Criteria:   "this.ATIVO = 'S'",
		OrderBy:    "this.NOMEPARC",
		Offset:     2,
		Limit:      50,
	})

	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded struct {
		RequestBody struct {
			DataSet map[string]json.RawMessage `json:"dataSet"`
		} `json:"requestBody"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	ds := decoded.RequestBody.DataSet
	assert.JSONEq(t, `"2"`, string(ds["offsetPage"]))
	assert.JSONEq(t, `"50"`, string(ds["limit"]))
	assert.JSONEq(t, `{"expression":{"$":"this.ATIVO = 'S'"}}`, string(ds["criteria"]))
	assert.JSONEq(t, `{"expression":{"$":"this.NOMEPARC"}}`, string(ds["orderBy"]))
	assert.NotContains(t, ds, "disableRowsLimit")
}

const envelopeMetadata = `{
	"fields": {
		"field": [
			{"name": "CODPARC"},
			{"name": "NOMEPARC"},
			{"name": "CGC_CPF"}
		]
	}
}`

func TestDecodeRecords_EntityArray(t *testing.T) {
	body := []byte(`{
		"responseBody": {
			"entities": {
				"metadata": ` + envelopeMetadata + `,
				"total": "2",
				"entity": [
					{"f0": {"$": "1"}, "f1": {"$": "ACME"}, "f2": {"$": "123"}},
					{"f0": {"$": "2"}, "f1": {"$": "GLOBEX"}}
				]
			}
		}
	}`)

	records, total, err := DecodeRecords(body)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, records, 2)

	assert.Equal(t, "1", records[0]["CODPARC"])
	assert.Equal(t, "ACME", records[0]["NOMEPARC"])
	assert.Equal(t, "123", records[0]["CGC_CPF"])

	// Absent positional slots stay absent instead of decoding to "".
	assert.Equal(t, "GLOBEX", records[1]["NOMEPARC"])
	_, ok := records[1]["CGC_CPF"]
	assert.False(t, ok)
}

func TestDecodeRecords_BareObjectEntity(t *testing.T) {
	// Single-result responses arrive as a bare object, not a one-element
	// array. Both shapes must decode identically.
	bare := []byte(`{
		"responseBody": {
			"entities": {
				"metadata": ` + envelopeMetadata + `,
				"total": "1",
				"entity": {"f0": {"$": "7"}, "f1": {"$": "INITECH"}}
			}
		}
	}`)
	wrapped := []byte(`{
		"responseBody": {
			"entities": {
				"metadata": ` + envelopeMetadata + `,
				"total": "1",
				"entity": [{"f0": {"$": "7"}, "f1": {"$": "INITECH"}}]
			}
		}
	}`)

	fromBare, bareTotal, err := DecodeRecords(bare)
	require.NoError(t, err)
	fromWrapped, wrappedTotal, err := DecodeRecords(wrapped)
	require.NoError(t, err)

	assert.Equal(t, fromWrapped, fromBare)
	assert.Equal(t, wrappedTotal, bareTotal)
	require.Len(t, fromBare, 1)
	assert.Equal(t, "INITECH", fromBare[0]["NOMEPARC"])
}

func TestDecodeRecords_NumericValuesKeepWireText(t *testing.T) {
	body := []byte(`{
		"responseBody": {
			"entities": {
				"metadata": ` + envelopeMetadata + `,
				"total": 1,
				"entity": [{"f0": {"$": 42}, "f1": {"$": "ACME"}}]
			}
		}
	}`)

	records, total, err := DecodeRecords(body)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "42", records[0]["CODPARC"])
}

func TestDecodeRecords_EmptyEnvelope(t *testing.T) {
	for name, body := range map[string]string{
		"no responseBody": `{"statusMessage": ""}`,
		"no entities":     `{"responseBody": {}}`,
		"null entity": `{"responseBody": {"entities": {
			"metadata": ` + envelopeMetadata + `, "entity": null}}}`,
	} {
		t.Run(name, func(t *testing.T) {
			records, total, err := DecodeRecords([]byte(body))
			require.NoError(t, err)
			assert.Empty(t, records)
			assert.Zero(t, total)
		})
	}
}

func TestDecodeRecords_MalformedBody(t *testing.T) {
	_, _, err := DecodeRecords([]byte(`not json`))
	assert.Error(t, err)
}

func TestNewSaveRecord_OneIndexedValues(t *testing.T) {
	rec := NewSaveRecord(map[string]string{"CODPARC": "7"}, []any{"ACME", "123"})

	assert.Equal(t, map[string]string{"CODPARC": "7"}, rec.PK)
	assert.Equal(t, map[string]any{"1": "ACME", "2": "123"}, rec.Values)
}

func TestNewSaveRecord_InsertOmitsPK(t *testing.T) {
	rec := NewSaveRecord(nil, []any{"ACME"})

	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"values": {"1": "ACME"}}`, string(raw))
}

func TestBuildSave(t *testing.T) {
	payload := BuildSave("Parceiro", []string{"NOMEPARC"}, []SaveRecord{
		NewSaveRecord(nil, []any{"ACME"}),
	})

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"serviceName": "DatasetSP.save",
		"requestBody": {
			"entityName": "Parceiro",
			"standAlone": false,
			"fields": ["NOMEPARC"],
			"records": [{"values": {"1": "ACME"}}]
		}
	}`, string(raw))
}
