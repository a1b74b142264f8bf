package cache

import (
	"errors"
	"testing"
	"time"
)

func TestCodecRoundTrip(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	assets := []Asset{
		NewAsset("plain", []byte("text"), nil),
		NewAsset("expiring", []byte{0, 1, 2, 255}, &exp),
		NewAsset("empty", []byte{}, nil),
	}
	for _, a := range assets {
		data, err := EncodeAsset(a)
		if err != nil {
			t.Fatalf("encode %s: %v", a.Identifier, err)
		}
		got, err := DecodeAsset(data)
		if err != nil {
			t.Fatalf("decode %s: %v", a.Identifier, err)
		}
		if !got.Equal(a) {
			t.Fatalf("round trip mismatch for %s: %+v", a.Identifier, got)
		}
	}
}

func TestCodecRejectsOtherVersions(t *testing.T) {
	data, err := encMode.Marshal(record{Version: recordVersion + 1, Identifier: "id"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := DecodeAsset(data); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign schema should decode as not found, got %v", err)
	}
}

func TestCodecKeepsFarFutureExpiry(t *testing.T) {
	exp := time.Date(2300, 1, 1, 0, 0, 0, 123456789, time.UTC)
	a := NewAsset("far", []byte("x"), &exp)

	data, err := EncodeAsset(a)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeAsset(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(exp) {
		t.Fatalf("expiry mismatch: %v", got.ExpiresAt)
	}
	if !got.Equal(a) || !got.IsValid(time.Now()) {
		t.Fatalf("far-future asset should round trip and stay valid: %+v", got)
	}
}
