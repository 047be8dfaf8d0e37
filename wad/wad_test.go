package wad

import (
	"testing"

	"github.com/starknuts/starknuts/cashu"
)

func sampleWad() CompactWad {
	var id1, id2 cashu.KeysetId
	id1[0] = 0x01
	id2[0] = 0x02
	return CompactWad{
		NodeURL: "https://node.test",
		Unit:    cashu.MilliStrk,
		Memo:    "coffee",
		Proofs: cashu.Proofs{
			{Amount: 1, Id: id1, Secret: "s1", C: "02" + "aa"},
			{Amount: 4, Id: id1, Secret: "s2", C: "02" + "bb"},
			{Amount: 8, Id: id2, Secret: "s3", C: "02" + "cc"},
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	w := sampleWad()
	tok, err := Encode(w)
	if err != nil {
		t.Fatal(err)
	}
	if tok[:6] != prefix {
		t.Fatalf("expected %s prefix, got %q", prefix, tok[:6])
	}

	got, err := Decode(tok)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one wad, got %d", len(got))
	}
	decoded := got[0]
	if decoded.NodeURL != w.NodeURL || decoded.Unit != w.Unit || decoded.Memo != w.Memo {
		t.Fatalf("header mismatch: %+v", decoded)
	}
	if len(decoded.Proofs) != len(w.Proofs) {
		t.Fatalf("expected %d proofs, got %d", len(w.Proofs), len(decoded.Proofs))
	}
	amount, err := decoded.Amount()
	if err != nil {
		t.Fatal(err)
	}
	if amount != 13 {
		t.Fatalf("expected total amount 13, got %d", amount)
	}
}

func TestDecodeAcceptsRawUnpaddedBase64(t *testing.T) {
	tok, err := Encode(sampleWad())
	if err != nil {
		t.Fatal(err)
	}
	// Strip any "=" padding the standard encoder produced, to exercise
	// the raw-url-base64 fallback path.
	raw := tok
	for len(raw) > 0 && raw[len(raw)-1] == '=' {
		raw = raw[:len(raw)-1]
	}
	if _, err := Decode(raw); err != nil {
		t.Fatalf("expected unpadded base64 to decode, got %v", err)
	}
}

func TestMultiWadRoundTrip(t *testing.T) {
	w1 := sampleWad()
	w2 := sampleWad()
	w2.NodeURL = "https://other.test"

	tok, err := EncodeMulti([]CompactWad{w1, w2})
	if err != nil {
		t.Fatal(err)
	}

	got, err := Decode(tok)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 wads, got %d", len(got))
	}
	if got[0].NodeURL != w1.NodeURL || got[1].NodeURL != w2.NodeURL {
		t.Fatalf("node urls mismatch: %+v", got)
	}
}

func TestMultiWadFailsFastOnBadToken(t *testing.T) {
	good, err := Encode(sampleWad())
	if err != nil {
		t.Fatal(err)
	}
	_, err = Decode(good + ":not-a-wad")
	if err == nil {
		t.Fatal("expected an error for the bad second token")
	}
}

func TestDecodeRejectsMissingPrefix(t *testing.T) {
	_, err := Decode("cashuAdeadbeef")
	if err != ErrUnsupportedWadFormat {
		t.Fatalf("expected ErrUnsupportedWadFormat, got %v", err)
	}
}
