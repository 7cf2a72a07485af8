package domain

import (
	"encoding/json"
	"errors"
)

// Messages put into Result.Error. Frontends show them as is.
const (
	ErrorMessageNoImage        = "Please upload an image."
	ErrorMessageParseFailure   = "parse failure"
	ErrorMessageOCRFailure     = "Failed to extract text from image."
	ErrorMessageImageFailure   = "Failed to process image: "
	ErrorMessageInferenceError = "Inference failed: "
)

// Result outcomes, see Result.Outcome.
const (
	OutcomeOK           = "ok"
	OutcomeParseFailure = "parse_failure"
	OutcomeError        = "error"
)

// Result is what a frontend gets back for one card: either a Contact or a failure. On failure, whatever raw text
// was produced along the way (model output, OCR text) is kept for diagnosis.
type Result struct {
	Contact    *Contact
	Error      string
	Details    string
	RawOutput  string
	ParseError string
	RawOCRText string
}

type failureJSON struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	RawOutput  string `json:"raw_output,omitempty"`
	ParseError string `json:"parse_error,omitempty"`
	RawOCRText string `json:"raw_ocr_text,omitempty"`
}

func NewFailedResult(message string) *Result {
	return &Result{Error: message}
}

// NewParseFailureResult converts an error from ContactRepairer.Repair to a result.
func NewParseFailureResult(err error, rawOutput string) *Result {
	result := &Result{
		Error:     ErrorMessageParseFailure,
		RawOutput: rawOutput,
	}
	var repairErr *RepairError
	if errors.As(err, &repairErr) {
		result.RawOutput = repairErr.RawOutput
		result.ParseError = repairErr.Reason
		if repairErr.Cause != nil {
			result.ParseError += ": " + repairErr.Cause.Error()
		}
	} else if err != nil {
		result.ParseError = err.Error()
	}
	return result
}

func (r *Result) Failed() bool {
	return r.Contact == nil
}

func (r *Result) Outcome() string {
	switch {
	case r.Contact != nil:
		return OutcomeOK
	case r.Error == ErrorMessageParseFailure:
		return OutcomeParseFailure
	default:
		return OutcomeError
	}
}

// MarshalJSON a successful result is the contact itself (plus "_raw_ocr_text" if OCR was used); a failure is
// an object with an "error" key.
func (r *Result) MarshalJSON() ([]byte, error) {
	if r.Contact != nil {
		var trailer []jsonPair
		if r.RawOCRText != "" {
			trailer = append(trailer, jsonPair{key: "_raw_ocr_text", value: r.RawOCRText})
		}
		return r.Contact.marshalWith(trailer)
	}
	return json.Marshal(failureJSON{
		Error:      r.Error,
		Details:    r.Details,
		RawOutput:  r.RawOutput,
		ParseError: r.ParseError,
		RawOCRText: r.RawOCRText,
	})
}
