package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

const codeFence = "```"

// Reasons reported by RepairError.
const (
	RepairReasonEmpty       = "empty model output"
	RepairReasonNoObject    = "no JSON object found"
	RepairReasonNotAnObject = "JSON value is not an object"
	RepairReasonInvalidJSON = "invalid JSON"
)

// RepairError is returned when the model output can't be turned into a Contact. RawOutput always holds the
// model's output (trimmed), so that the caller can show it for debugging.
type RepairError struct {
	RawOutput string
	Reason    string
	Cause     error
}

func (e *RepairError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parse failure: %s: %s", e.Reason, e.Cause)
	}
	return "parse failure: " + e.Reason
}

func (e *RepairError) Unwrap() error {
	return e.Cause
}

// JSONExtractor locates the text of a JSON object inside free-form model output.
type JSONExtractor interface {
	// ExtractJSON returns the candidate object text, or false if there's nothing that looks like an object.
	ExtractJSON(s string) (string, bool)
}

// FirstLastBraceExtractor takes everything from the first "{" to the last "}", inclusive. It tolerates prose
// before and after the object, but it does not balance braces: if trailing prose contains a "}", the candidate
// runs up to that brace and fails to parse.
type FirstLastBraceExtractor struct{}

func (FirstLastBraceExtractor) ExtractJSON(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || start >= end {
		return "", false
	}
	return s[start : end+1], true
}

// BalancedBraceExtractor scans from the first "{" and stops where the nesting depth returns to zero. Braces
// inside string literals (including escaped quotes) don't count.
type BalancedBraceExtractor struct{}

func (BalancedBraceExtractor) ExtractJSON(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start == -1 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// NewJSONExtractor returns the extractor by its config name ("firstlast" or "balanced").
func NewJSONExtractor(name string) (JSONExtractor, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", JSONExtractionFirstLast:
		return FirstLastBraceExtractor{}, nil
	case JSONExtractionBalanced:
		return BalancedBraceExtractor{}, nil
	default:
		return nil, fmt.Errorf("unknown JSON extraction strategy %q", name)
	}
}

// ContactRepairer salvages a Contact from model output which was supposed to be a single JSON object, but may be
// wrapped in markdown fences or surrounded by commentary.
type ContactRepairer struct {
	extractor JSONExtractor
}

func NewContactRepairer(extractor JSONExtractor) *ContactRepairer {
	if extractor == nil {
		extractor = FirstLastBraceExtractor{}
	}
	return &ContactRepairer{
		extractor: extractor,
	}
}

var defaultContactRepairer = NewContactRepairer(FirstLastBraceExtractor{})

// RepairContact runs the repair pass with the default (first/last brace) extractor.
func RepairContact(s string) (*Contact, error) {
	return defaultContactRepairer.Repair(s)
}

func (r *ContactRepairer) Repair(s string) (*Contact, error) {
	rawOutput := strings.TrimSpace(s)
	if rawOutput == "" {
		return nil, &RepairError{RawOutput: rawOutput, Reason: RepairReasonEmpty}
	}
	stripped := StripCodeFences(rawOutput)
	if isNonObjectJSON(stripped) {
		return nil, &RepairError{RawOutput: rawOutput, Reason: RepairReasonNotAnObject}
	}
	candidate, ok := r.extractor.ExtractJSON(stripped)
	if !ok {
		return nil, &RepairError{RawOutput: rawOutput, Reason: RepairReasonNoObject}
	}
	var contact Contact
	err := json.Unmarshal([]byte(candidate), &contact)
	if err != nil {
		return nil, &RepairError{RawOutput: rawOutput, Reason: RepairReasonInvalidJSON, Cause: err}
	}
	return &contact, nil
}

// StripCodeFences removes markdown code fences: a leading fence (with an optional language tag) is cut together
// with its closing fence; otherwise, if a fence occurs anywhere, what's between the first and the second fence
// is kept.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, codeFence) {
		s = dropLanguageTag(s[len(codeFence):])
		if end := strings.Index(s, codeFence); end != -1 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}
	if first := strings.Index(s, codeFence); first != -1 {
		rest := s[first+len(codeFence):]
		if second := strings.Index(rest, codeFence); second != -1 {
			rest = rest[:second]
		}
		s = strings.TrimSpace(dropLanguageTag(rest))
	}
	return s
}

// dropLanguageTag removes "json" from "json\n{...}" (the annotation right after an opening fence).
func dropLanguageTag(s string) string {
	i := 0
	for i < len(s) && isLanguageTagChar(s[i]) {
		i++
	}
	if i == 0 {
		return s
	}
	if i == len(s) {
		return ""
	}
	switch s[i] {
	case ' ', '\t', '\r', '\n', '{', '[':
		return s[i:]
	}
	return s
}

func isLanguageTagChar(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '-' || ch == '_' || ch == '+' || ch == '.'
}

// isNonObjectJSON is true for input which is, as a whole, valid JSON of another kind: an array, a string etc.
func isNonObjectJSON(s string) bool {
	return s != "" && s[0] != '{' && json.Valid([]byte(s))
}
