package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultMarshalSuccess(t *testing.T) {
	result := &Result{
		Contact:    &Contact{Name: strPtr("Jane")},
		RawOCRText: "JANE\nACME",
	}
	data, err := json.Marshal(result)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "Jane", decoded["name"])
	assert.Nil(t, decoded["title"])
	assert.Equal(t, "JANE\nACME", decoded["_raw_ocr_text"])
	assert.Len(t, decoded, len(ContactFields)+1)
	assert.Equal(t, OutcomeOK, result.Outcome())
	assert.False(t, result.Failed())
}

func TestResultMarshalOCRTextReplacesModelKey(t *testing.T) {
	contact, err := RepairContact(`{"name": "Jane", "_raw_ocr_text": "model", "fax": "none"}`)
	require.NoError(t, err)
	result := &Result{Contact: contact, RawOCRText: "ocr"}

	data, err := json.Marshal(result)

	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), `"_raw_ocr_text"`))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "ocr", decoded["_raw_ocr_text"])
	assert.Equal(t, "none", decoded["fax"])
}

func TestResultMarshalParseFailure(t *testing.T) {
	_, err := RepairContact("  I can't read this card.  ")
	require.Error(t, err)
	result := NewParseFailureResult(err, "ignored")
	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"error":"parse failure","raw_output":"I can't read this card.","parse_error":"no JSON object found"}`,
		string(data),
	)
	assert.Equal(t, OutcomeParseFailure, result.Outcome())
	assert.True(t, result.Failed())
}

func TestResultParseFailureFromForeignError(t *testing.T) {
	result := NewParseFailureResult(errors.New("boom"), "raw")
	assert.Equal(t, "raw", result.RawOutput)
	assert.Equal(t, "boom", result.ParseError)
}

func TestResultMarshalError(t *testing.T) {
	data, err := json.Marshal(NewFailedResult(ErrorMessageNoImage))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"Please upload an image."}`, string(data))
	assert.Equal(t, OutcomeError, NewFailedResult(ErrorMessageNoImage).Outcome())
}
