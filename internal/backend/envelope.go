package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/simp-lee/rentadmin/internal/domain"
)

// Envelope is the wrapper every marketplace response uses.
type Envelope struct {
	Success        bool            `json:"success"`
	Message        Message         `json:"message,omitempty"`
	StatusCode     int             `json:"statusCode,omitempty"`
	ResponseObject json.RawMessage `json:"responseObject"`
}

// Message is the envelope message. The backend sends either a string or,
// for field validation failures, a list of strings.
type Message string

// UnmarshalJSON accepts a string, a list of strings, or null.
func (m *Message) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*m = ""
		return nil
	}
	if b[0] == '[' {
		var parts []string
		if err := json.Unmarshal(b, &parts); err != nil {
			return fmt.Errorf("decode message list: %w", err)
		}
		*m = Message(strings.Join(parts, "; "))
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	*m = Message(s)
	return nil
}

// totalKeys are the members accepted as the server-reported total, in order.
var totalKeys = []string{"totalCount", "total", "count"}

// DecodePage normalizes a list responseObject into the canonical page shape.
//
// The responseObject may be a bare array, an object holding the array under
// listKey, or an object whose first array-valued member (by name) holds it.
// totalCount defaults to the number of items when the server omits it.
func DecodePage(raw json.RawMessage, listKey string) (domain.Page, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return domain.Page{Items: []domain.Record{}}, nil
	}

	if raw[0] == '[' {
		items, err := decodeRecords(raw)
		if err != nil {
			return domain.Page{}, err
		}
		return domain.Page{Items: items, TotalCount: len(items)}, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return domain.Page{}, fmt.Errorf("decode list object: %w", err)
	}

	listRaw, ok := obj[listKey]
	if !ok || listKey == "" {
		listRaw, ok = firstArrayMember(obj)
	}

	items := []domain.Record{}
	if ok {
		var err error
		if items, err = decodeRecords(listRaw); err != nil {
			return domain.Page{}, err
		}
	}

	total := len(items)
	for _, k := range totalKeys {
		v, present := obj[k]
		if !present {
			continue
		}
		var n json.Number
		if err := json.Unmarshal(v, &n); err != nil {
			return domain.Page{}, fmt.Errorf("decode %s: %w", k, err)
		}
		i, err := n.Int64()
		if err != nil || i < 0 {
			return domain.Page{}, fmt.Errorf("invalid %s %q", k, n.String())
		}
		total = int(i)
		break
	}

	return domain.Page{Items: items, TotalCount: total}, nil
}

// DecodeRecord decodes a single-record responseObject. An empty or null
// object yields a nil record.
func DecodeRecord(raw json.RawMessage) (domain.Record, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var rec domain.Record
	if err := unmarshalNumbers(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

func decodeRecords(raw json.RawMessage) ([]domain.Record, error) {
	items := []domain.Record{}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return items, nil
	}
	if err := unmarshalNumbers(raw, &items); err != nil {
		return nil, fmt.Errorf("decode list items: %w", err)
	}
	return items, nil
}

func firstArrayMember(obj map[string]json.RawMessage) (json.RawMessage, bool) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := bytes.TrimSpace(obj[k])
		if len(v) > 0 && v[0] == '[' {
			return v, true
		}
	}
	return nil, false
}

// unmarshalNumbers decodes with UseNumber so numeric ids and prices survive
// a round trip without float formatting.
func unmarshalNumbers(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}
