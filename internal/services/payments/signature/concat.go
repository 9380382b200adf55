package signature

import "strings"

// Concat is the keyed concatenation family: the secret sits somewhere in an
// ordered list of values that are joined and hashed.
type Concat struct {
	Hash      Hash
	Separator string
	Case      Case
}

func (c Concat) Sign(values ...string) string {
	return c.Case.encode(digest(c.Hash, []byte(strings.Join(values, c.Separator))))
}

func (c Concat) Verify(claimed string, values ...string) error {
	return check(c.Sign(values...), claimed)
}

// KeyedHMAC joins values and authenticates them with an HMAC keyed by the
// secret instead of embedding the secret in the string.
type KeyedHMAC struct {
	Hash      Hash
	Separator string
	Case      Case
}

func (k KeyedHMAC) Sign(secret string, values ...string) string {
	return k.Case.encode(mac(k.Hash, secret, []byte(strings.Join(values, k.Separator))))
}

func (k KeyedHMAC) Verify(secret, claimed string, values ...string) error {
	return check(k.Sign(secret, values...), claimed)
}
