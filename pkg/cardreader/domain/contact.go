package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrNotJSONObject = errors.New("JSON value is not an object")

// ContactFields the fixed output schema, in the order the prompt lists them.
var ContactFields = []string{
	"name",
	"title",
	"company",
	"phone",
	"email",
	"website",
	"address",
	"miscellaneous",
}

// Contact is what a business card boils down to. A nil field means the model reported it as unknown (null).
// Keys the model added on its own are kept in Extra and written back on serialization: the schema is advisory.
type Contact struct {
	Name          *string
	Title         *string
	Company       *string
	Phone         *string
	Email         *string
	Website       *string
	Address       *string
	Miscellaneous *string
	Extra         map[string]any
}

type jsonPair struct {
	key   string
	value any
}

// Field returns the value of a schema field by its JSON name.
func (c *Contact) Field(name string) (string, bool) {
	for i, field := range ContactFields {
		if field == name {
			value := *c.fieldPointers()[i]
			if value == nil {
				return "", false
			}
			return *value, true
		}
	}
	return "", false
}

// Summary formats the known fields on a single line, for chat-like frontends.
func (c *Contact) Summary() string {
	var parts []string
	for _, value := range c.fieldPointers() {
		if *value != nil && strings.TrimSpace(**value) != "" {
			parts = append(parts, strings.Join(strings.Fields(**value), " "))
		}
	}
	if len(parts) == 0 {
		return "nothing found"
	}
	return strings.Join(parts, " | ")
}

func (c *Contact) fieldPointers() []**string {
	return []**string{
		&c.Name,
		&c.Title,
		&c.Company,
		&c.Phone,
		&c.Email,
		&c.Website,
		&c.Address,
		&c.Miscellaneous,
	}
}

func (c *Contact) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	err := json.Unmarshal(data, &raw)
	if err != nil {
		return err
	}
	if raw == nil { // a literal null
		return ErrNotJSONObject
	}
	*c = Contact{}
	pointers := c.fieldPointers()
	for i, field := range ContactFields {
		value, ok := raw[field]
		if !ok {
			continue
		}
		delete(raw, field)
		str, err := coerceToString(value)
		if err != nil {
			return fmt.Errorf("field %q: %w", field, err)
		}
		*pointers[i] = str
	}
	if len(raw) == 0 {
		return nil
	}
	c.Extra = make(map[string]any, len(raw))
	for key, value := range raw {
		var decoded any
		err := unmarshalKeepingNumbers(value, &decoded)
		if err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		c.Extra[key] = decoded
	}
	return nil
}

func (c Contact) MarshalJSON() ([]byte, error) {
	return c.marshalWith(nil)
}

// marshalWith writes the schema fields first (always present, null when unknown), then the extras sorted by key,
// then `trailer`. A trailer key replaces an extra of the same name.
func (c *Contact) marshalWith(trailer []jsonPair) ([]byte, error) {
	pairs := make([]jsonPair, 0, len(ContactFields)+len(c.Extra)+len(trailer))
	for i, value := range c.fieldPointers() {
		if *value == nil {
			pairs = append(pairs, jsonPair{key: ContactFields[i]})
		} else {
			pairs = append(pairs, jsonPair{key: ContactFields[i], value: **value})
		}
	}
	trailerKeys := make(map[string]bool, len(trailer))
	for _, pair := range trailer {
		trailerKeys[pair.key] = true
	}
	extraKeys := make([]string, 0, len(c.Extra))
	for key := range c.Extra {
		if !trailerKeys[key] {
			extraKeys = append(extraKeys, key)
		}
	}
	sort.Strings(extraKeys)
	for _, key := range extraKeys {
		pairs = append(pairs, jsonPair{key: key, value: c.Extra[key]})
	}
	pairs = append(pairs, trailer...)
	return marshalPairs(pairs)
}

func marshalPairs(pairs []jsonPair) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, pair := range pairs {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(pair.key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(pair.value)
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// coerceToString models don't always follow the schema: "phone" comes back as a list, a zip code as a number.
// Lists are joined, other scalars keep their JSON text, objects are kept as compact JSON.
func coerceToString(value json.RawMessage) (*string, error) {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var result string
	switch trimmed[0] {
	case '"':
		err := json.Unmarshal(trimmed, &result)
		if err != nil {
			return nil, err
		}
	case '[':
		var items []any
		err := unmarshalKeepingNumbers(trimmed, &items)
		if err != nil {
			return nil, err
		}
		parts := make([]string, 0, len(items))
		for _, item := range items {
			switch v := item.(type) {
			case nil:
				continue
			case string:
				parts = append(parts, v)
			default:
				encoded, err := json.Marshal(v)
				if err != nil {
					return nil, err
				}
				parts = append(parts, string(encoded))
			}
		}
		result = strings.Join(parts, ", ")
	case '{':
		var buf bytes.Buffer
		err := json.Compact(&buf, trimmed)
		if err != nil {
			return nil, err
		}
		result = buf.String()
	default:
		result = string(trimmed)
	}
	return &result, nil
}

// unmarshalKeepingNumbers decodes numbers as json.Number, so IDs longer than float64 precision survive a round trip.
func unmarshalKeepingNumbers(data []byte, v any) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	return decoder.Decode(v)
}
