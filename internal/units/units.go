// Package units rewrites quantities and temperatures in free recipe text
// between metric and imperial measurements.
package units

import (
	"errors"
	"fmt"
	"strings"
)

// System is the measurement system a text is converted into.
type System string

const (
	// Original leaves text untouched.
	Original System = "original"
	Imperial System = "imperial"
	Metric   System = "metric"
)

// ErrUnknownSystem is returned by ParseSystem for unrecognized names.
var ErrUnknownSystem = errors.New("unknown unit system")

// ParseSystem maps a user supplied name onto a System. The empty string
// selects Original.
func ParseSystem(name string) (System, error) {
	switch s := System(strings.ToLower(strings.TrimSpace(name))); s {
	case "":
		return Original, nil
	case Original, Imperial, Metric:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSystem, name)
	}
}

// ConvertText rewrites every recognized temperature and quantity+unit
// occurrence in text into the target system. Everything else is left as is.
func ConvertText(text string, target System) string {
	if text == "" {
		return text
	}

	var (
		rules       []rule
		temperature *temperatureRule
	)
	switch target {
	case Imperial:
		rules, temperature = toImperial, &celsiusToFahrenheit
	case Metric:
		rules, temperature = toMetric, &fahrenheitToCelsius
	default:
		return text
	}

	out := temperature.apply(text)
	for _, r := range rules {
		out = r.apply(out)
	}
	return out
}

// ConvertIngredients applies ConvertText to each item. The result has the
// same length and order as items.
func ConvertIngredients(items []string, target System) []string {
	if items == nil {
		return nil
	}
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = ConvertText(item, target)
	}
	return out
}
