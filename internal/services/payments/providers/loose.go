package providers

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// looseDoc is a verified JSON callback read without a schema. It backs the
// typed event decoding when a provider changes the shape of a field.
type looseDoc struct {
	root any
}

func decodeLoose(body []byte) looseDoc {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var root any
	if err := dec.Decode(&root); err != nil {
		return looseDoc{}
	}
	return looseDoc{root: root}
}

// str returns the scalar at a dotted path as a string. Array elements are
// addressed by index. Objects, arrays and absent paths give "".
func (d looseDoc) str(path string) string {
	cur := d.root
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			cur = node[seg]
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return ""
			}
			cur = node[i]
		default:
			return ""
		}
	}
	switch v := cur.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

func (d looseDoc) first(paths ...string) string {
	for _, p := range paths {
		if v := d.str(p); v != "" {
			return v
		}
	}
	return ""
}

// driftPaths says where a dialect finds its correlation fields in the raw
// body. The first order path names the field reported when none is found.
type driftPaths struct {
	order       []string
	transaction []string
	status      []string
	currency    []string
}

// salvage builds a notification from a verified body the typed decoding
// rejected. The adapter reports it as unknown.
func (p driftPaths) salvage(body []byte, decodeErr error) (notification, error) {
	doc := decodeLoose(body)
	order := doc.first(p.order...)
	if order == "" {
		return notification{}, missing(p.order[0])
	}
	return notification{
		OrderID:       order,
		TransactionID: doc.first(p.transaction...),
		RawStatus:     doc.first(p.status...),
		Currency:      doc.first(p.currency...),
		undecoded:     decodeErr,
	}, nil
}
