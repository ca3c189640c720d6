package utils

import (
	"encoding/json"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"+380501234567", "+380501234567"},
		{"0501234567", "+380501234567"},
		{"050 123 45 67", "+380501234567"},
		{"(050) 123-45-67", "+380501234567"},
		{"not a phone 123", "123"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizePhone(tc.in); got != tc.expected {
			t.Fatalf("NormalizePhone(%q) expected %q, got %q", tc.in, tc.expected, got)
		}
	}
}

func TestDecimalFromNumber(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"150.00", "150"},
		{"-12.5", "-12.5"},
		{"", "0"},
		{"abc", "0"},
	}
	for _, tc := range cases {
		if got := DecimalFromNumber(json.Number(tc.in)); got.String() != tc.expected {
			t.Fatalf("DecimalFromNumber(%q) expected %s, got %s", tc.in, tc.expected, got.String())
		}
	}
}

func TestDecimalFromDelimited(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"25,50", "25.5"},
		{"1 234,56", "1234.56"},
		{"51.00", "51"},
		{"", "0"},
		{"n/a", "0"},
	}
	for _, tc := range cases {
		if got := DecimalFromDelimited(tc.in); got.String() != tc.expected {
			t.Fatalf("DecimalFromDelimited(%q) expected %s, got %s", tc.in, tc.expected, got.String())
		}
	}
}

func TestParsePosTime(t *testing.T) {
	if got := ParsePosTime("2026-08-15 22:10:05"); got == nil || got.Format("2006-01-02 15:04:05") != "2026-08-15 22:10:05" {
		t.Fatalf("expected datetime to parse, got %v", got)
	}
	if got := ParsePosTime("0000-00-00 00:00:00"); got != nil {
		t.Fatalf("expected nil for placeholder date, got %v", got)
	}
	if got := ParsePosTime(""); got != nil {
		t.Fatalf("expected nil for empty value, got %v", got)
	}
}

func TestParsePosTimestampMs(t *testing.T) {
	got := ParsePosTimestampMs("1755295805000")
	if got == nil {
		t.Fatal("expected millisecond epoch to parse")
	}
	if got.UTC().Format("2006-01-02 15:04:05") != "2025-08-15 22:10:05" {
		t.Fatalf("unexpected time %s", got.UTC().Format("2006-01-02 15:04:05"))
	}
	for _, v := range []string{"", "0", "-5", "abc"} {
		if ParsePosTimestampMs(v) != nil {
			t.Fatalf("expected nil for %q", v)
		}
	}
}
