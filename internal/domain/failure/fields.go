package failure

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// DetailField carries messages that are not bound to a form field
const DetailField = "detail"

// FieldErrors is an ordered mapping from field name to one or more messages.
// Fields keep the order in which they were first added.
type FieldErrors struct {
	order    []string
	messages map[string][]string
}

// NewFieldErrors creates an empty mapping
func NewFieldErrors() *FieldErrors {
	return &FieldErrors{messages: make(map[string][]string)}
}

// Add appends a message to a field
func (f *FieldErrors) Add(field, message string) {
	if f.messages == nil {
		f.messages = make(map[string][]string)
	}
	if _, ok := f.messages[field]; !ok {
		f.order = append(f.order, field)
	}
	f.messages[field] = append(f.messages[field], message)
}

// Len returns the number of fields with messages
func (f *FieldErrors) Len() int {
	if f == nil {
		return 0
	}
	return len(f.order)
}

// Empty reports whether there is nothing to show
func (f *FieldErrors) Empty() bool {
	return f.Len() == 0
}

// Fields returns the field names in insertion order
func (f *FieldErrors) Fields() []string {
	if f == nil {
		return nil
	}
	return append([]string(nil), f.order...)
}

// Get returns the messages of a field
func (f *FieldErrors) Get(field string) []string {
	if f == nil {
		return nil
	}
	return append([]string(nil), f.messages[field]...)
}

// Messages flattens the mapping into "field: message" lines. Detail
// messages are rendered without a prefix.
func (f *FieldErrors) Messages() []string {
	if f == nil {
		return nil
	}
	var out []string
	for _, field := range f.order {
		for _, msg := range f.messages[field] {
			if field == DetailField {
				out = append(out, msg)
				continue
			}
			out = append(out, field+": "+msg)
		}
	}
	return out
}

// MarshalJSON writes the fields in order as an object of string arrays
func (f *FieldErrors) MarshalJSON() ([]byte, error) {
	if f == nil {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range f.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(field)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.messages[field])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ParseFieldErrors normalises an error payload of the remote service.
// Accepted shapes: {"field": "msg"}, {"field": ["msg", ...]}, nested objects
// (flattened as "parent.child") and arrays of objects (flattened as
// "items[0].quantity"). A bare string or array becomes the detail field.
// Key order of the payload is preserved.
func ParseFieldErrors(data []byte) (*FieldErrors, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	fe := NewFieldErrors()
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parse error payload: %w", err)
	}
	if err := collect(dec, tok, "", fe); err != nil {
		return nil, fmt.Errorf("parse error payload: %w", err)
	}
	return fe, nil
}

func collect(dec *json.Decoder, tok json.Token, path string, fe *FieldErrors) error {
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return err
				}
				key, _ := keyTok.(string)
				next, err := dec.Token()
				if err != nil {
					return err
				}
				if err := collect(dec, next, joinPath(path, key), fe); err != nil {
					return err
				}
			}
		case '[':
			for i := 0; dec.More(); i++ {
				next, err := dec.Token()
				if err != nil {
					return err
				}
				itemPath := path
				if _, nested := next.(json.Delim); nested {
					itemPath = fmt.Sprintf("%s[%d]", fieldOrDetail(path), i)
				}
				if err := collect(dec, next, itemPath, fe); err != nil {
					return err
				}
			}
		}
		// closing delimiter
		_, err := dec.Token()
		return err
	case string:
		fe.Add(fieldOrDetail(path), v)
	case json.Number:
		fe.Add(fieldOrDetail(path), v.String())
	case bool:
		fe.Add(fieldOrDetail(path), strconv.FormatBool(v))
	}
	return nil
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func fieldOrDetail(path string) string {
	if path == "" {
		return DetailField
	}
	return path
}
