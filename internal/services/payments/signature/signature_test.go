package signature_test

import (
	"testing"

	"golang-payment-adapters/internal/services/payments/signature"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonical_KnownDigest(t *testing.T) {
	c := signature.Canonical{Hash: signature.SHA256, SignatureField: "signature"}
	fields := signature.Fields{"order_id": "X", "amount": "10"}

	assert.Equal(t, "amount=10&order_id=X", c.String(fields))

	sig := c.Sign("S", fields)
	assert.Equal(t, "a510072e1ffb0fa43aa5f42a80ac494d7d448efec0ae67ac0887c4e84864599a", sig)

	callback := signature.Fields{"order_id": "X", "amount": "10", "signature": sig}
	require.NoError(t, c.Verify("S", callback))
	// the claimed signature must not leak into the signed string
	assert.Equal(t, "amount=10&order_id=X", c.String(callback))
}

func TestCanonical_Tamper(t *testing.T) {
	c := signature.Canonical{Hash: signature.SHA512, SignatureField: "vnp_SecureHash", Exclude: []string{"vnp_SecureHashType"}, Escape: true}
	fields := signature.Fields{"vnp_Amount": "2000000", "vnp_TxnRef": "A1", "vnp_OrderInfo": "pay order A1"}
	fields["vnp_SecureHash"] = c.Sign("secret", fields)
	fields["vnp_SecureHashType"] = "HmacSHA512"
	require.NoError(t, c.Verify("secret", fields))

	for _, key := range []string{"vnp_Amount", "vnp_TxnRef", "vnp_OrderInfo"} {
		tampered := fields.Without()
		tampered[key] += "1"
		assert.ErrorIs(t, c.Verify("secret", tampered), signature.ErrMismatch, key)
	}

	assert.ErrorIs(t, c.Verify("other", fields), signature.ErrMismatch)
	assert.ErrorIs(t, c.Verify("secret", fields.Without("vnp_SecureHash")), signature.ErrMissingField)
}

func TestCanonical_UpperCase(t *testing.T) {
	lower := signature.Canonical{Hash: signature.SHA256, SignatureField: "sign"}
	upper := signature.Canonical{Hash: signature.SHA256, SignatureField: "sign", Case: signature.Upper}
	fields := signature.Fields{"a": "1"}

	l := lower.Sign("k", fields)
	u := upper.Sign("k", fields)
	assert.NotEqual(t, l, u)

	fields["sign"] = l
	assert.ErrorIs(t, upper.Verify("k", fields), signature.ErrMismatch, "case is significant")
}

func TestConcat(t *testing.T) {
	c := signature.Concat{Hash: signature.SHA256, Separator: ":", Case: signature.Upper}
	sig := c.Sign("shop", "ord-1", "10.00", "USD", "secret")
	assert.Equal(t, "8111E8C18029819133729508B29CACA16A601784A8A38E11802AF11720F855AE", sig)

	require.NoError(t, c.Verify(sig, "shop", "ord-1", "10.00", "USD", "secret"))
	assert.ErrorIs(t, c.Verify(sig, "shop", "ord-1", "10.01", "USD", "secret"), signature.ErrMismatch)
	assert.ErrorIs(t, c.Verify("", "shop"), signature.ErrMissingField)

	md5 := signature.Concat{Hash: signature.MD5}
	assert.Equal(t, "900150983cd24fb0d6963f7d28e17f72", md5.Sign("abc"))
}

func TestKeyedHMAC(t *testing.T) {
	k := signature.KeyedHMAC{Hash: signature.SHA256, Separator: "|"}
	sig := k.Sign("rzp_secret", "order_Rz1", "pay_29QQoUBi66xm2f")
	assert.Equal(t, "3132c2ba74d18cd7e331e0057781913a079c98a278570b1c9a0bf3b53c2b0d66", sig)

	require.NoError(t, k.Verify("rzp_secret", sig, "order_Rz1", "pay_29QQoUBi66xm2f"))
	assert.ErrorIs(t, k.Verify("rzp_secret", sig, "order_Rz2", "pay_29QQoUBi66xm2f"), signature.ErrMismatch)
	assert.ErrorIs(t, k.Verify("rzp_secret", sig, "pay_29QQoUBi66xm2f", "order_Rz1"), signature.ErrMismatch, "order matters")
	assert.ErrorIs(t, k.Verify("other", sig, "order_Rz1", "pay_29QQoUBi66xm2f"), signature.ErrMismatch)
	assert.ErrorIs(t, k.Verify("rzp_secret", "", "order_Rz1"), signature.ErrMissingField)
}

func TestFields_Require(t *testing.T) {
	f := signature.Fields{"a": "1", "b": ""}

	values, err := f.Require("b", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"", "1"}, values)

	_, err = f.Require("a", "c")
	assert.ErrorIs(t, err, signature.ErrMissingField)
}

func TestEncoded(t *testing.T) {
	e := signature.Encoded{Hash: signature.MD5}
	assert.Equal(t, "52984746e1bfcb9d436d81804d2b0046", e.Sign("key", []byte(`{"a":1}`)))
	require.NoError(t, e.Verify("key", []byte(`{"a":1}`), "52984746e1bfcb9d436d81804d2b0046"))
	assert.ErrorIs(t, e.Verify("key", []byte(`{"a":2}`), "52984746e1bfcb9d436d81804d2b0046"), signature.ErrMismatch)
}

func TestBodyHMAC(t *testing.T) {
	b := signature.BodyHMAC{Hash: signature.SHA512}
	body := []byte(`{"event":"charge.success","data":{"amount":2000}}`)
	sig := b.Sign("sk_test", body)

	require.NoError(t, b.Verify("sk_test", body, sig))
	assert.ErrorIs(t, b.Verify("sk_test", []byte(`{"event":"charge.success","data":{"amount":2001}}`), sig), signature.ErrMismatch)
	assert.ErrorIs(t, b.Verify("sk_test", body, ""), signature.ErrMissingField)
}

func TestStripJSONField(t *testing.T) {
	body := []byte(`{"uuid": "u-1", "order_id":"o\/1", "sign":"abc", "amount":"10.00", "extra":{"b":1, "a":2}}`)

	stripped, claimed, err := signature.StripJSONField(body, "sign")
	require.NoError(t, err)
	assert.Equal(t, "abc", claimed)
	assert.Equal(t, `{"uuid":"u-1","order_id":"o\/1","amount":"10.00","extra":{"b":1,"a":2}}`, string(stripped))

	_, _, err = signature.StripJSONField([]byte(`{"uuid":"u-1"}`), "sign")
	assert.ErrorIs(t, err, signature.ErrMissingField)

	_, _, err = signature.StripJSONField([]byte(`[1,2]`), "sign")
	assert.Error(t, err)
}

func TestEscapeSlashes(t *testing.T) {
	assert.Equal(t, `{"u":"a\/b\/c"}`, string(signature.EscapeSlashes([]byte(`{"u":"a/b\/c"}`))))
}
