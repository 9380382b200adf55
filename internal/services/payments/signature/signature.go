// Package signature implements the digest families used by payment providers
// to sign outbound requests and authenticate inbound callbacks.
package signature

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strings"
)

var (
	ErrMissingField = errors.New("missing signed field")
	ErrMismatch     = errors.New("digest mismatch")
)

type Hash func() hash.Hash

var (
	MD5    Hash = md5.New
	SHA256 Hash = sha256.New
	SHA512 Hash = sha512.New
)

// Case selects how a hex digest is rendered.
type Case int

const (
	Lower Case = iota
	Upper
)

func (c Case) encode(sum []byte) string {
	out := hex.EncodeToString(sum)
	if c == Upper {
		return strings.ToUpper(out)
	}
	return out
}

// Equal compares two digests in constant time. Case is significant.
func Equal(expected, claimed string) bool {
	return hmac.Equal([]byte(expected), []byte(claimed))
}

func check(expected, claimed string) error {
	if claimed == "" {
		return fmt.Errorf("%w: empty signature", ErrMissingField)
	}
	if !Equal(expected, claimed) {
		return ErrMismatch
	}
	return nil
}

func digest(h Hash, data []byte) []byte {
	d := h()
	d.Write(data)
	return d.Sum(nil)
}

func mac(h Hash, secret string, data []byte) []byte {
	m := hmac.New(h, []byte(secret))
	m.Write(data)
	return m.Sum(nil)
}

// Fields is the flat key/value view of a payload that signing operates on.
type Fields map[string]string

// Require returns the values for keys in order. A key that is absent is an
// error; an empty value that is present is kept.
func (f Fields) Require(keys ...string) ([]string, error) {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		v, ok := f[k]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, k)
		}
		out = append(out, v)
	}
	return out, nil
}

// Without returns a copy of f minus the given keys.
func (f Fields) Without(keys ...string) Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}
