package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"
)

// Default region for phone parsing; the POS installation this service syncs
// from operates in a single country.
var CountryCode = regionFromEnv()

func regionFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("PHONE_REGION")); v != "" {
		return strings.ToUpper(v)
	}
	return "UA"
}

var nonDigits = regexp.MustCompile(`\D`)

// NormalizePhone returns the E.164 form of a phone number, or a digits-only
// fallback when the number cannot be parsed. Empty input stays empty.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}
	p, err := libphonenumber.Parse(phone, CountryCode)
	if err == nil && libphonenumber.IsValidNumber(p) {
		return libphonenumber.Format(p, libphonenumber.E164)
	}
	return nonDigits.ReplaceAllString(phone, "")
}

// DecimalFromNumber parses a json.Number that may arrive as a quoted string,
// an empty string or a bare number. Unparseable input maps to zero.
func DecimalFromNumber(num json.Number) decimal.Decimal {
	s := strings.TrimSpace(num.String())
	if s == "" {
		return decimal.Zero
	}
	if d, err := decimal.NewFromString(s); err == nil {
		return d
	}
	return decimal.Zero
}

// DecimalFromDelimited parses numbers as they appear in fiscal exports:
// decimal comma, embedded spaces as thousands separators.
func DecimalFromDelimited(s string) decimal.Decimal {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" {
		return decimal.Zero
	}
	if d, err := decimal.NewFromString(s); err == nil {
		return d
	}
	return decimal.Zero
}

const posDateTimeLayout = "2006-01-02 15:04:05"

// ParsePosTime parses the POS API's datetime format, falling back to
// RFC 3339. The zero time is returned for anything unparseable, including
// the API's "0000-00-00" placeholders.
func ParsePosTime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" || strings.HasPrefix(value, "0000-00-00") {
		return nil
	}
	if t, err := time.Parse(posDateTimeLayout, value); err == nil {
		return &t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t
	}
	return nil
}

// ParsePosTimestampMs parses the POS API's millisecond epoch timestamps,
// which arrive as strings.
func ParsePosTimestampMs(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" || value == "0" {
		return nil
	}
	var ms int64
	if _, err := fmt.Sscan(value, &ms); err != nil || ms <= 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}

func SplitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvBoolDefault(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}
