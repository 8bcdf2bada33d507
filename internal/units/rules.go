package units

import (
	"regexp"
	"strings"
)

// quantityPattern captures a mixed number, a fraction or a plain number.
// Mixed numbers come first so "2 1/2" is not read as "2" followed by junk.
// A quantity never spans a line break.
const quantityPattern = `(\d+[ \t]+\d+/\d+|\d+/\d+|\d+(?:\.\d+)?)`

// leftEdge keeps a quantity from starting inside a word or after a decimal
// point ("A12", ".5"). Go regexps have no lookbehind, so the edge character
// is consumed and replaceQuantities writes it back.
const leftEdge = `(?:^|[^\w.])`

// rule rewrites one family of unit spellings into a single target unit.
type rule struct {
	pattern *regexp.Regexp
	factor  float64
	label   string
}

func newRule(spellings string, factor float64, label string) rule {
	return rule{
		pattern: regexp.MustCompile(`(?i)` + leftEdge + quantityPattern + `[ \t]*(?:` + spellings + `)\b`),
		factor:  factor,
		label:   label,
	}
}

func (r rule) apply(text string) string {
	return replaceQuantities(r.pattern, text, func(v float64) string {
		return FormatQuantity(v*r.factor) + " " + r.label
	})
}

// Declaration order is observable: each rule runs over the previous rule's
// output, so longer spellings ("fl oz") must come before shorter ones ("oz").
var (
	toImperial = []rule{
		newRule(`liters?|litres?|l`, 1.05669, "qt"),
		newRule(`milliliters?|millilitres?|ml`, 0.033814, "fl oz"),
		newRule(`kilograms?|kilos?|kgs?`, 2.20462, "lb"),
		newRule(`grams?|gr|g`, 0.035274, "oz"),
		newRule(`centimeters?|centimetres?|cm`, 0.393701, "in"),
	}

	toMetric = []rule{
		newRule(`fluid[ \t]+ounces?|fl\.?[ \t]*oz`, 29.5735, "ml"),
		newRule(`tablespoons?|tbsps?|tbs`, 14.7868, "ml"),
		newRule(`teaspoons?|tsps?`, 4.92892, "ml"),
		newRule(`cups?`, 236.588, "ml"),
		newRule(`pints?|pts?`, 473.176, "ml"),
		newRule(`quarts?|qts?`, 946.353, "ml"),
		newRule(`gallons?|gal`, 3.78541, "l"),
		newRule(`pounds?|lbs?`, 0.453592, "kg"),
		newRule(`ounces?|oz`, 28.3495, "g"),
		newRule(`inch(?:es)?`, 2.54, "cm"),
	}
)

type temperatureRule struct {
	pattern *regexp.Regexp
	convert func(float64) float64
	suffix  string
}

var (
	celsiusToFahrenheit = temperatureRule{
		pattern: regexp.MustCompile(`(?i)` + leftEdge + `(-?\d+(?:\.\d+)?)[ \t]*°[ \t]*C\b`),
		convert: func(c float64) float64 { return c*9/5 + 32 },
		suffix:  "°F",
	}
	fahrenheitToCelsius = temperatureRule{
		pattern: regexp.MustCompile(`(?i)` + leftEdge + `(-?\d+(?:\.\d+)?)[ \t]*°[ \t]*F\b`),
		convert: func(f float64) float64 { return (f - 32) * 5 / 9 },
		suffix:  "°C",
	}
)

func (t *temperatureRule) apply(text string) string {
	return replaceQuantities(t.pattern, text, func(v float64) string {
		return FormatQuantity(t.convert(v)) + t.suffix
	})
}

// replaceQuantities substitutes every match of re whose first group parses
// as a quantity. Text before the group is kept. Matches that do not parse
// are kept verbatim.
func replaceQuantities(re *regexp.Regexp, text string, render func(float64) string) string {
	matches := re.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range matches {
		v, err := ParseQuantity(text[m[2]:m[3]])
		if err != nil {
			continue
		}
		b.WriteString(text[last:m[2]])
		b.WriteString(render(v))
		last = m[1]
	}
	b.WriteString(text[last:])
	return b.String()
}
