package liquidity

import (
	"encoding/base64"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/starknuts/starknuts/cashu"
)

// paymentRequestPrefix mirrors the teacher's draft NUT payment-request
// "creq" prefix, adapted to carry this rail's melt-specific fields
// instead of a Lightning invoice.
const paymentRequestPrefix = "creq"

type wirePaymentRequest struct {
	Asset  string       `cbor:"a"`
	Payee  string       `cbor:"p"`
	Amount cashu.Amount `cbor:"m"`
	Expiry int64        `cbor:"e"`
}

// EncodePaymentRequest serializes a melt Request as CBOR, base64, and
// the literal ASCII prefix "creq" for transport over a plain string
// field (the wallet's "opaque payment request string" from §6.3).
func EncodePaymentRequest(r Request) (string, error) {
	wire := wirePaymentRequest{Asset: r.Asset, Payee: r.Payee, Amount: r.Amount, Expiry: r.Expiry}
	data, err := cbor.Marshal(wire)
	if err != nil {
		return "", err
	}
	return paymentRequestPrefix + base64.RawURLEncoding.EncodeToString(data), nil
}

func DecodePaymentRequest(s string) (Request, error) {
	if len(s) < len(paymentRequestPrefix) || s[:len(paymentRequestPrefix)] != paymentRequestPrefix {
		return Request{}, fmt.Errorf("payment request missing %q prefix", paymentRequestPrefix)
	}
	data, err := base64.RawURLEncoding.DecodeString(s[len(paymentRequestPrefix):])
	if err != nil {
		return Request{}, fmt.Errorf("invalid base64 in payment request: %w", err)
	}
	var wire wirePaymentRequest
	if err := cbor.Unmarshal(data, &wire); err != nil {
		return Request{}, fmt.Errorf("invalid cbor in payment request: %w", err)
	}
	return Request{Asset: wire.Asset, Payee: wire.Payee, Amount: wire.Amount, Expiry: wire.Expiry}, nil
}
