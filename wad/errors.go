package wad

import (
	"encoding/base64"
	"errors"
	"fmt"
)

var (
	ErrUnsupportedWadFormat = errors.New("wad: missing cashuB prefix")
	ErrInvalidBase64        = errors.New("wad: invalid base64")
	ErrInvalidCbor          = errors.New("wad: invalid cbor")
	ErrWadValueOverflow     = errors.New("wad: proof amounts overflow")
)

// InvalidWadToken reports that the token at the given index of a
// ":"-delimited multi-wad string failed to decode.
func InvalidWadToken(index int) error {
	return fmt.Errorf("wad: invalid token at index %d", index)
}

// base64URLEncode always emits padding; base64URLDecode accepts either
// padded or raw (unpadded) url-safe base64, per §4.10's "with and without
// padding accepted on decode".
func base64URLEncode(data []byte) string {
	return base64.URLEncoding.EncodeToString(data)
}

func base64URLDecode(s string) ([]byte, error) {
	if data, err := base64.URLEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawURLEncoding.DecodeString(s)
}
