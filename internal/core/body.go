package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// BodyKind tags the shape of a lookup response body.
type BodyKind int

const (
	BodyEmpty BodyKind = iota
	BodyStructured
	BodyRaw
	BodyError
)

func (k BodyKind) String() string {
	switch k {
	case BodyStructured:
		return "structured"
	case BodyRaw:
		return "raw"
	case BodyError:
		return "error"
	default:
		return "empty"
	}
}

// Body is a response payload: a decoded JSON document, raw text, or a local error.
type Body struct {
	Kind  BodyKind
	Data  any
	Raw   string
	Error string

	// JSON holds the compacted response document in upstream member order.
	// Data is derived from it and only backs the field accessors.
	JSON json.RawMessage
}

// StructuredBody wraps a decoded JSON document.
func StructuredBody(data any) Body {
	return Body{Kind: BodyStructured, Data: data}
}

// RawBody wraps a non-JSON response.
func RawBody(text string) Body {
	return Body{Kind: BodyRaw, Raw: text}
}

// ErrorBody wraps a local or transport failure description.
func ErrorBody(description string) Body {
	return Body{Kind: BodyError, Error: description}
}

// DecodeJSON parses a JSON payload keeping numbers exact and the document
// as sent.
func DecodeJSON(data []byte) (Body, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var payload any
	if err := decoder.Decode(&payload); err != nil {
		return Body{}, err
	}

	var compacted bytes.Buffer
	if err := json.Compact(&compacted, data[:decoder.InputOffset()]); err != nil {
		return Body{}, err
	}
	body := StructuredBody(payload)
	body.JSON = compacted.Bytes()
	return body, nil
}

// Value returns the body as it is serialized into the json-response column.
func (b Body) Value() any {
	switch b.Kind {
	case BodyStructured:
		return b.Data
	case BodyRaw:
		return map[string]any{"raw": b.Raw}
	case BodyError:
		return map[string]any{"error": b.Error}
	default:
		return nil
	}
}

// MarshalJSON serializes the body using its wire shape.
func (b Body) MarshalJSON() ([]byte, error) {
	if b.Kind == BodyStructured && len(b.JSON) > 0 {
		return b.JSON, nil
	}
	return encode(b.Value())
}

// UnmarshalJSON restores a body from its wire shape. Single-key objects
// holding "raw" or "error" strings are read back as those variants.
func (b *Body) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeJSON(data)
	if err != nil {
		return err
	}
	if decoded.Data == nil {
		*b = Body{}
		return nil
	}
	if obj, ok := decoded.Data.(map[string]any); ok && len(obj) == 1 {
		if text, ok := obj["raw"].(string); ok {
			*b = RawBody(text)
			return nil
		}
		if text, ok := obj["error"].(string); ok {
			*b = ErrorBody(text)
			return nil
		}
	}
	*b = decoded
	return nil
}

// Serialize renders the body for the json-response column. Values that cannot
// be encoded fall back to their fmt representation.
func (b Body) Serialize() string {
	if b.Kind == BodyStructured && len(b.JSON) > 0 {
		return string(b.JSON)
	}
	value := b.Value()
	if value == nil {
		return ""
	}
	encoded, err := encode(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(encoded)
}

// encode marshals value without escaping <, > and &.
func encode(value any) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(value); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// HasError reports whether the body carries an "error" member.
func (b Body) HasError() bool {
	if b.Kind == BodyError {
		return true
	}
	obj, ok := b.object()
	if !ok {
		return false
	}
	_, found := obj["error"]
	return found
}

// ReturnCode extracts the top-level returnCode of a structured body.
func (b Body) ReturnCode() (string, bool) {
	obj, ok := b.object()
	if !ok {
		return "", false
	}
	return scalarString(obj["returnCode"])
}

// RegistrationID extracts data.registrationId of a structured body.
func (b Body) RegistrationID() (string, bool) {
	return b.DataField("registrationId")
}

// DataField extracts a scalar member of the body's "data" object.
func (b Body) DataField(key string) (string, bool) {
	obj, ok := b.object()
	if !ok {
		return "", false
	}
	data, ok := obj["data"].(map[string]any)
	if !ok {
		return "", false
	}
	return scalarString(data[key])
}

func (b Body) object() (map[string]any, bool) {
	if b.Kind != BodyStructured {
		return nil, false
	}
	obj, ok := b.Data.(map[string]any)
	return obj, ok
}

func scalarString(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		encoded, err := encode(v)
		if err != nil {
			return fmt.Sprintf("%v", v), true
		}
		return string(encoded), true
	}
}
