// Package wad implements the compact wad codec of SPEC_FULL.md §4.10: a
// CBOR-encoded, base64, cashuB-prefixed bundle of proofs grouped by
// keyset, with an optional ":"-delimited multi-wad form.
package wad

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/starknuts/starknuts/cashu"
)

const prefix = "cashuB"

// CompactWad is a transferable bundle of proofs from a single node,
// grouped by keyset so the id is carried once per group rather than once
// per proof.
type CompactWad struct {
	NodeURL string
	Unit    cashu.Unit
	Memo    string
	Proofs  cashu.Proofs
}

// Amount returns the total value carried by the wad.
func (w CompactWad) Amount() (cashu.Amount, error) {
	return w.Proofs.Amount()
}

// cborProof/cborGroup/cborWad are the wire shapes named in §6.4: field
// keys n, u, m, p, i, a, s, c. Keyset ids and C encode as raw CBOR byte
// strings, not hex, so they get their own DTO rather than reusing
// cashu.Proof's JSON-facing hex string fields.
type cborProof struct {
	A uint64 `cbor:"a"`
	S string `cbor:"s"`
	C []byte `cbor:"c"`
}

type cborGroup struct {
	I []byte      `cbor:"i"`
	P []cborProof `cbor:"p"`
}

type cborWad struct {
	N string      `cbor:"n"`
	U string      `cbor:"u"`
	M string      `cbor:"m,omitempty"`
	P []cborGroup `cbor:"p"`
}

func toCBOR(w CompactWad) (cborWad, error) {
	groups := make(map[cashu.KeysetId][]cborProof)
	var order []cashu.KeysetId
	for _, p := range w.Proofs {
		c, err := hex.DecodeString(p.C)
		if err != nil {
			return cborWad{}, fmt.Errorf("wad: invalid proof C %q: %w", p.C, err)
		}
		if _, ok := groups[p.Id]; !ok {
			order = append(order, p.Id)
		}
		groups[p.Id] = append(groups[p.Id], cborProof{A: uint64(p.Amount), S: string(p.Secret), C: c})
	}

	out := cborWad{N: w.NodeURL, U: w.Unit.String(), M: w.Memo}
	for _, id := range order {
		idBytes := id
		out.P = append(out.P, cborGroup{I: idBytes[:], P: groups[id]})
	}
	return out, nil
}

func fromCBOR(cw cborWad) (CompactWad, error) {
	unit, err := cashu.ParseUnit(cw.U)
	if err != nil {
		return CompactWad{}, err
	}

	w := CompactWad{NodeURL: cw.N, Unit: unit, Memo: cw.M}
	var total cashu.Amount
	for _, g := range cw.P {
		if len(g.I) != 8 {
			return CompactWad{}, fmt.Errorf("%w: keyset id has %d bytes, want 8", ErrInvalidCbor, len(g.I))
		}
		var id cashu.KeysetId
		copy(id[:], g.I)
		for _, p := range g.P {
			sum, err := total.Add(cashu.Amount(p.A))
			if err != nil {
				return CompactWad{}, ErrWadValueOverflow
			}
			total = sum
			w.Proofs = append(w.Proofs, cashu.Proof{
				Amount: cashu.Amount(p.A),
				Id:     id,
				Secret: cashu.Secret(p.S),
				C:      hex.EncodeToString(p.C),
			})
		}
	}
	return w, nil
}

// Encode renders a single wad as cashuB || url-safe-base64(CBOR(wad)).
func Encode(w CompactWad) (string, error) {
	cw, err := toCBOR(w)
	if err != nil {
		return "", err
	}
	data, err := cbor.Marshal(cw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCbor, err)
	}
	return prefix + base64URLEncode(data), nil
}

// EncodeMulti renders several wads as "wad1:wad2:...:wadN".
func EncodeMulti(wads []CompactWad) (string, error) {
	tokens := make([]string, len(wads))
	for i, w := range wads {
		tok, err := Encode(w)
		if err != nil {
			return "", fmt.Errorf("wad %d: %w", i, err)
		}
		tokens[i] = tok
	}
	return strings.Join(tokens, ":"), nil
}

// Decode parses a compact wad string. A ":"-delimited input is treated as
// a multi-wad token and every piece is decoded independently, failing
// fast on the first bad one with InvalidWadToken(index). A single token
// is decoded as one wad, falling back to the legacy encoding (a CBOR
// array of wads under one base64 block) if the object form doesn't parse.
func Decode(s string) ([]CompactWad, error) {
	if strings.Contains(s, ":") {
		parts := strings.Split(s, ":")
		out := make([]CompactWad, len(parts))
		for i, part := range parts {
			w, err := decodeOne(part)
			if err != nil {
				return nil, InvalidWadToken(i)
			}
			out[i] = w
		}
		return out, nil
	}

	w, err := decodeOne(s)
	if err == nil {
		return []CompactWad{w}, nil
	}

	legacy, legacyErr := decodeLegacy(s)
	if legacyErr != nil {
		return nil, err
	}
	return legacy, nil
}

func decodeOne(s string) (CompactWad, error) {
	if !strings.HasPrefix(s, prefix) {
		return CompactWad{}, ErrUnsupportedWadFormat
	}
	data, err := base64URLDecode(s[len(prefix):])
	if err != nil {
		return CompactWad{}, ErrInvalidBase64
	}

	var cw cborWad
	if err := cbor.Unmarshal(data, &cw); err != nil {
		return CompactWad{}, fmt.Errorf("%w: %v", ErrInvalidCbor, err)
	}
	return fromCBOR(cw)
}

func decodeLegacy(s string) ([]CompactWad, error) {
	if !strings.HasPrefix(s, prefix) {
		return nil, ErrUnsupportedWadFormat
	}
	data, err := base64URLDecode(s[len(prefix):])
	if err != nil {
		return nil, ErrInvalidBase64
	}

	var cws []cborWad
	if err := cbor.Unmarshal(data, &cws); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCbor, err)
	}
	out := make([]CompactWad, len(cws))
	for i, cw := range cws {
		w, err := fromCBOR(cw)
		if err != nil {
			return nil, err
		}
		out[i] = w
	}
	return out, nil
}
