package crypto

import (
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

func TestHashToCurveDeterministic(t *testing.T) {
	msg := []byte("test_message")
	p1, err := HashToCurve(msg)
	if err != nil {
		t.Fatal(err)
	}
	p2, err := HashToCurve(msg)
	if err != nil {
		t.Fatal(err)
	}
	if !p1.IsEqual(p2) {
		t.Fatal("hash_to_curve is not deterministic")
	}
}

func TestBDHKERoundTrip(t *testing.T) {
	k, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	K := k.PubKey()

	secret := []byte("some-secret-token-identifier")
	B_, r, err := BlindMessage(secret, nil)
	if err != nil {
		t.Fatal(err)
	}

	C_ := SignMessage(k, B_)
	C := UnblindSignature(C_, r, K)

	Y, err := HashToCurve(secret)
	if err != nil {
		t.Fatal(err)
	}
	expected := SignMessage(k, Y)

	if !C.IsEqual(expected) {
		t.Fatal("unblind_message(sign_message(k, blind_message(s,r)), r, K) != k*hash_to_curve(s)")
	}
}

func TestDLEQAliceVerification(t *testing.T) {
	k, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	K := k.PubKey()

	B_, _, err := BlindMessage([]byte("secret-1"), nil)
	if err != nil {
		t.Fatal(err)
	}
	C_ := SignMessage(k, B_)

	e, s := ProveDLEQ(k, K, B_, C_)
	if !VerifyDLEQAlice(e, s, K, B_, C_) {
		t.Fatal("DLEQ should verify for the correct (k, K, B', C')")
	}
}

func TestDLEQAliceRejectsWrongKey(t *testing.T) {
	k, _ := secp256k1.GeneratePrivateKey()
	other, _ := secp256k1.GeneratePrivateKey()
	K := k.PubKey()

	B_, _, err := BlindMessage([]byte("secret-2"), nil)
	if err != nil {
		t.Fatal(err)
	}
	C_ := SignMessage(k, B_)
	e, s := ProveDLEQ(other, K, B_, C_)

	if VerifyDLEQAlice(e, s, K, B_, C_) {
		t.Fatal("DLEQ should not verify when proved with the wrong key")
	}
}

func TestDLEQCarolVerification(t *testing.T) {
	k, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	K := k.PubKey()

	secret := []byte("secret-for-carol")
	B_, r, err := BlindMessage(secret, nil)
	if err != nil {
		t.Fatal(err)
	}
	C_ := SignMessage(k, B_)
	e, s := ProveDLEQ(k, K, B_, C_)

	C := UnblindSignature(C_, r, K)

	if !VerifyDLEQCarol(e, s, secret, r, C, K) {
		t.Fatal("Carol's reconstruction-based DLEQ verification should succeed")
	}
}
