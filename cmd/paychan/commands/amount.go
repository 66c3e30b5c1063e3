package commands

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	satsPerBTC  = 100000000
	btcDecimals = 8
)

// ParseBTC converts a decimal BTC amount such as "0.0015" into satoshis.
// At most eight fractional digits are accepted.
func ParseBTC(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}

	if whole == "" && frac == "" {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if len(frac) > btcDecimals {
		return 0, fmt.Errorf("amount %q has more than %d decimals", s, btcDecimals)
	}
	if !digits(whole) || !digits(frac) {
		return 0, fmt.Errorf("invalid amount %q", s)
	}

	var w uint64
	if whole != "" {
		var err error
		w, err = strconv.ParseUint(whole, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q: %v", s, err)
		}
	}

	var f uint64
	if frac != "" {
		frac += strings.Repeat("0", btcDecimals-len(frac))
		f, _ = strconv.ParseUint(frac, 10, 64)
	}

	if w > (^uint64(0)-f)/satsPerBTC {
		return 0, fmt.Errorf("amount %q overflows", s)
	}

	return w*satsPerBTC + f, nil
}

// FormatBTC renders satoshis as a decimal BTC amount without trailing zeros.
func FormatBTC(sats uint64) string {
	whole := sats / satsPerBTC
	frac := sats % satsPerBTC
	if frac == 0 {
		return strconv.FormatUint(whole, 10)
	}
	f := strings.TrimRight(fmt.Sprintf("%08d", frac), "0")
	return fmt.Sprintf("%d.%s", whole, f)
}

// parseAmount reads a satoshi integer when inSats is set, a BTC decimal
// otherwise.
func parseAmount(s string, inSats bool) (uint64, error) {
	if inSats {
		v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid satoshi amount %q", s)
		}
		return v, nil
	}
	return ParseBTC(s)
}

func digits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
