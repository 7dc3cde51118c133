package domain

import (
	"math"
	"testing"
)

func TestAmountDisplay(t *testing.T) {
	tests := []struct {
		name   string
		amount Amount
		scale  int32
		want   string
	}{
		{name: "zero", amount: 0, scale: 7, want: "0.0000000"},
		{name: "one lumen", amount: 10_000_000, scale: 7, want: "1.0000000"},
		{name: "fraction", amount: 5000, scale: 7, want: "0.0005000"},
		{name: "no scale", amount: 42, scale: 0, want: "42"},
		{name: "max uint64", amount: math.MaxUint64, scale: 2, want: "184467440737095516.15"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.amount.Display(tc.scale); got != tc.want {
				t.Fatalf("Display(%d) = %q, want %q", tc.scale, got, tc.want)
			}
		})
	}
}

func TestTargetIDString(t *testing.T) {
	if got := TargetID("art-001").String(); got != "art-001" {
		t.Fatalf("String() = %q, want art-001", got)
	}
	if got := TargetID([]byte{0xff, 0x00}).String(); got != "0xff00" {
		t.Fatalf("String() = %q, want 0xff00", got)
	}
	if got := TargetID("0xcafe").String(); got != "0x307863616665" {
		t.Fatalf("String() = %q, want hex for 0x-prefixed text", got)
	}
	if !TargetID("a").Equal(TargetID("a")) || TargetID("a").Equal(TargetID("b")) {
		t.Fatalf("Equal() mismatch")
	}
}

func TestParseTargetIDRoundTrip(t *testing.T) {
	ids := []TargetID{TargetID("art-001"), TargetID([]byte{0xff, 0x00}), TargetID("0xcafe"), TargetID("")}
	for _, id := range ids {
		if got := ParseTargetID(id.String()); !got.Equal(id) {
			t.Fatalf("ParseTargetID(%q) = %v, want %v", id.String(), []byte(got), []byte(id))
		}
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		scale   int32
		want    Amount
		wantErr bool
	}{
		{in: "1", scale: 7, want: 10_000_000},
		{in: "0.0005", scale: 7, want: 5000},
		{in: "12.50", scale: 2, want: 1250},
		{in: "42", scale: 0, want: 42},
		{in: "184467440737095516.15", scale: 2, want: math.MaxUint64},
		{in: "184467440737095516.16", scale: 2, wantErr: true},
		{in: "0.00000001", scale: 7, wantErr: true},
		{in: "-1", scale: 7, wantErr: true},
		{in: "abc", scale: 7, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseAmount(tc.in, tc.scale)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseAmount(%q) = %d, want error", tc.in, got)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("ParseAmount(%q) = %d, %v; want %d", tc.in, got, err, tc.want)
			}
		})
	}
}
