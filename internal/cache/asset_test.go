package cache

import (
	"testing"
	"time"
)

func TestAssetValidity(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Second)

	cases := []struct {
		name   string
		expiry *time.Time
		want   bool
	}{
		{"no expiry", nil, true},
		{"future", &future, true},
		{"past", &past, false},
		{"exactly now", &now, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := NewAsset("id", []byte("x"), tc.expiry)
			if got := a.IsValid(now); got != tc.want {
				t.Fatalf("IsValid = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAssetNoExpiryValidIndefinitely(t *testing.T) {
	a := NewAsset("id", []byte("x"), nil)
	later := time.Now().Add(100 * 365 * 24 * time.Hour)
	if !a.IsValid(later) {
		t.Fatalf("asset without expiry must stay valid")
	}
	if _, ok := a.Expiry(); ok {
		t.Fatalf("Expiry should report unset")
	}
}

func TestAssetEqual(t *testing.T) {
	exp := time.Unix(100, 0)
	sameInstant := exp.In(time.FixedZone("x", 3600))
	other := time.Unix(200, 0)

	base := NewAsset("id", []byte("x"), &exp)
	cases := []struct {
		name  string
		other Asset
		want  bool
	}{
		{"identical", NewAsset("id", []byte("x"), &exp), true},
		{"same instant other zone", NewAsset("id", []byte("x"), &sameInstant), true},
		{"different id", NewAsset("id2", []byte("x"), &exp), false},
		{"different payload", NewAsset("id", []byte("y"), &exp), false},
		{"different expiry", NewAsset("id", []byte("x"), &other), false},
		{"missing expiry", NewAsset("id", []byte("x"), nil), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := base.Equal(tc.other); got != tc.want {
				t.Fatalf("Equal = %v, want %v", got, tc.want)
			}
		})
	}
}
