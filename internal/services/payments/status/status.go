// Package status maps provider status vocabularies onto the canonical set.
package status

import (
	"strings"

	"golang-payment-adapters/internal/services/payments/types"
)

// Table maps raw provider statuses to canonical ones. Lookups ignore case and
// surrounding whitespace.
type Table struct {
	entries map[string]types.Status
}

func NewTable(entries map[string]types.Status) Table {
	t := Table{entries: make(map[string]types.Status, len(entries))}
	for raw, s := range entries {
		if !s.Valid() {
			s = types.StatusUnknown
		}
		t.entries[key(raw)] = s
	}
	return t
}

// Normalize never fails: anything not in the table is unknown.
func (t Table) Normalize(raw string) types.Status {
	if s, ok := t.entries[key(raw)]; ok {
		return s
	}
	return types.StatusUnknown
}

func (t Table) Known(raw string) bool {
	_, ok := t.entries[key(raw)]
	return ok
}

func key(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
