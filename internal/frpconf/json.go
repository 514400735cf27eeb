package frpconf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// MarshalJSON writes the entry as a JSON object with keys in field order.
func (p ProxyEntry) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range p.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a flat JSON object, keeping key order. Numbers and
// booleans are accepted and stored in their textual form.
func (p *ProxyEntry) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("proxy entry must be a JSON object")
	}

	p.Fields = nil
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)

		tok, err = dec.Token()
		if err != nil {
			return err
		}
		var value string
		switch v := tok.(type) {
		case string:
			value = v
		case json.Number:
			value = v.String()
		case bool:
			value = fmt.Sprint(v)
		case nil:
			continue
		default:
			return fmt.Errorf("proxy field %q must be a scalar", key)
		}
		p.Set(key, strings.TrimSpace(value))
	}
	_, err = dec.Token()
	return err
}

// Canonical returns a copy with the required fields first, in render
// order, followed by the remaining fields in their existing order.
func (p ProxyEntry) Canonical() ProxyEntry {
	var out ProxyEntry
	for _, k := range RequiredProxyFields {
		if v, ok := p.Get(k); ok {
			out.Set(k, v)
		}
	}
	for _, f := range p.Fields {
		if !isRequiredField(f.Key) {
			out.Set(f.Key, f.Value)
		}
	}
	return out
}
