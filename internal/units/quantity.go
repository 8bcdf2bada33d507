package units

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidQuantity is returned when a token cannot be read as a number.
var ErrInvalidQuantity = errors.New("invalid quantity")

// ParseQuantity reads an integer, decimal, simple fraction ("1/2") or mixed
// number ("2 1/2").
func ParseQuantity(token string) (float64, error) {
	fields := strings.Fields(token)
	switch len(fields) {
	case 1:
		if strings.Contains(fields[0], "/") {
			return parseFraction(fields[0])
		}
		return parseNumber(fields[0])
	case 2:
		whole, err := parseNumber(fields[0])
		if err != nil {
			return 0, err
		}
		frac, err := parseFraction(fields[1])
		if err != nil {
			return 0, err
		}
		return whole + frac, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidQuantity, token)
	}
}

func parseFraction(s string) (float64, error) {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidQuantity, s)
	}
	n, err := parseNumber(num)
	if err != nil {
		return 0, err
	}
	d, err := parseNumber(den)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return 0, fmt.Errorf("%w: zero denominator in %q", ErrInvalidQuantity, s)
	}
	return n / d, nil
}

func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidQuantity, s)
	}
	return v, nil
}

// FormatQuantity rounds v to two decimals and prints it without trailing
// zeros: 3, 2.5, 2.33.
func FormatQuantity(v float64) string {
	r := math.Round(v*100) / 100
	if r == 0 {
		r = 0 // drop the sign of -0
	}
	if r == math.Trunc(r) {
		return strconv.FormatFloat(r, 'f', 0, 64)
	}
	s := strconv.FormatFloat(r, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
