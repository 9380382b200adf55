package signature

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

var errNotObject = errors.New("payload is not a JSON object")

// Encoded is the encode-then-hash family: payload bytes are base64 encoded,
// the secret is appended and the result is hashed.
type Encoded struct {
	Hash Hash
	Case Case
}

func (e Encoded) Sign(secret string, payload []byte) string {
	s := base64.StdEncoding.EncodeToString(payload) + secret
	return e.Case.encode(digest(e.Hash, []byte(s)))
}

func (e Encoded) Verify(secret string, payload []byte, claimed string) error {
	return check(e.Sign(secret, payload), claimed)
}

// BodyHMAC authenticates the exact bytes of a request body, the digest being
// carried out of band in a header.
type BodyHMAC struct {
	Hash Hash
	Case Case
}

func (b BodyHMAC) Sign(secret string, body []byte) string {
	return b.Case.encode(mac(b.Hash, secret, body))
}

func (b BodyHMAC) Verify(secret string, body []byte, claimed string) error {
	return check(b.Sign(secret, body), claimed)
}

// StripJSONField removes a top-level string member from a JSON object and
// returns the compacted remainder with member order preserved, together with
// the removed value.
func StripJSONField(body []byte, field string) ([]byte, string, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	tok, err := dec.Token()
	if err != nil {
		return nil, "", fmt.Errorf("reading payload: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, "", errNotObject
	}

	var (
		out     bytes.Buffer
		claimed string
		found   bool
		first   = true
	)
	out.WriteByte('{')
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, "", fmt.Errorf("reading payload key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, "", errNotObject
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, "", fmt.Errorf("reading payload value %q: %w", key, err)
		}
		if key == field {
			if err := json.Unmarshal(raw, &claimed); err != nil {
				return nil, "", fmt.Errorf("%w: %s is not a string", ErrMissingField, field)
			}
			found = true
			continue
		}
		if !first {
			out.WriteByte(',')
		}
		first = false
		k, err := json.Marshal(key)
		if err != nil {
			return nil, "", err
		}
		out.Write(k)
		out.WriteByte(':')
		if err := json.Compact(&out, raw); err != nil {
			return nil, "", err
		}
	}
	out.WriteByte('}')
	if !found {
		return nil, "", fmt.Errorf("%w: %s", ErrMissingField, field)
	}
	return out.Bytes(), claimed, nil
}

// EscapeSlashes renders every '/' as "\/", the way PHP's json_encode does,
// whether or not the input already escaped them.
func EscapeSlashes(payload []byte) []byte {
	plain := bytes.ReplaceAll(payload, []byte(`\/`), []byte(`/`))
	return bytes.ReplaceAll(plain, []byte(`/`), []byte(`\/`))
}
