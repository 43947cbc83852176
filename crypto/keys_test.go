package crypto

import (
	"testing"

	"github.com/btcsuite/btcutil/bech32"
)

func TestAddressRoundTrip(t *testing.T) {
	raw := make([]byte, 20)
	raw[0] = 0xAB
	raw[19] = 0xCD
	addr := NewAddress(LendPrefix, raw)

	decoded, err := DecodeAddress(addr.String())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.Equal(addr) {
		t.Fatalf("round trip changed address: %s != %s", decoded, addr)
	}
	if decoded.Prefix() != LendPrefix {
		t.Fatalf("expected prefix %q, got %q", LendPrefix, decoded.Prefix())
	}
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	if _, err := DecodeAddress("not-bech32"); err == nil {
		t.Fatal("expected error for malformed input")
	}
}

func TestDecodeAddressRejectsWrongPayloadLength(t *testing.T) {
	// Well-formed bech32 strings whose payloads are not 20 bytes must be
	// rejected with an error, never a panic.
	for _, size := range []int{3, 19, 21, 32} {
		conv, err := bech32.ConvertBits(make([]byte, size), 8, 5, true)
		if err != nil {
			t.Fatalf("convert bits: %v", err)
		}
		encoded, err := bech32.Encode(string(LendPrefix), conv)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if _, err := DecodeAddress(encoded); err == nil {
			t.Fatalf("expected error for %d-byte payload", size)
		}
	}
}

func TestKeypairAddress(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := key.PubKey().Address()
	if len(addr.Bytes()) != 20 {
		t.Fatalf("expected 20-byte address, got %d", len(addr.Bytes()))
	}

	restored, err := PrivateKeyFromBytes(key.Bytes())
	if err != nil {
		t.Fatalf("restore key: %v", err)
	}
	if !restored.PubKey().Address().Equal(addr) {
		t.Fatal("restored key derives a different address")
	}
}
