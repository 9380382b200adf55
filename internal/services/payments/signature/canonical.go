package signature

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Canonical is the query-string HMAC family: every field except the
// signature is sorted by key, rendered as key=value pairs joined by '&' and
// authenticated with an HMAC.
type Canonical struct {
	Hash           Hash
	Case           Case
	SignatureField string
	// Exclude lists companion fields that are never signed, e.g. a hash type.
	Exclude []string
	// Escape query-escapes keys and values before joining.
	Escape bool
	// SkipEmpty drops fields whose value is empty.
	SkipEmpty bool
}

func (c Canonical) String(fields Fields) string {
	keys := make([]string, 0, len(fields))
	for k, v := range fields {
		if k == c.SignatureField || c.excluded(k) {
			continue
		}
		if c.SkipEmpty && v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		v := fields[k]
		if c.Escape {
			k, v = url.QueryEscape(k), url.QueryEscape(v)
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
	}
	return b.String()
}

func (c Canonical) Sign(secret string, fields Fields) string {
	return c.Case.encode(mac(c.Hash, secret, []byte(c.String(fields))))
}

// Verify recomputes the digest over fields minus the signature and compares it
// to the claimed value carried in fields[SignatureField].
func (c Canonical) Verify(secret string, fields Fields) error {
	claimed, ok := fields[c.SignatureField]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMissingField, c.SignatureField)
	}
	return check(c.Sign(secret, fields.Without(c.SignatureField)), claimed)
}

func (c Canonical) excluded(key string) bool {
	for _, e := range c.Exclude {
		if strings.EqualFold(e, key) {
			return true
		}
	}
	return false
}
