// Package price turns storefront price text into validated values.
package price

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"sjsage522/menuscout/pkg/errors"
)

const (
	DefaultMin = 10.0
	DefaultMax = 5000.0
)

var numericRun = regexp.MustCompile(`\d[\d.,]*`)

// Parser accepts prices within [Min, Max]
type Parser struct {
	Min float64
	Max float64
}

// NewParser creates a parser with the given bounds
func NewParser(min, max float64) Parser {
	return Parser{Min: min, Max: max}
}

// Default returns a parser with the default bounds
func Default() Parser {
	return NewParser(DefaultMin, DefaultMax)
}

// Parse extracts the first number from raw, e.g. "1.250,00 ₺" or "45 TL",
// and checks it against the bounds.
func (p Parser) Parse(raw string) (float64, error) {
	run := strings.TrimRight(numericRun.FindString(raw), ".,")
	if run == "" {
		return 0, errors.NewInvalidPrice(raw, "no digits", nil)
	}

	normalized, err := normalize(run)
	if err != nil {
		return 0, errors.NewInvalidPrice(raw, "malformed number", err)
	}

	value, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, errors.NewInvalidPrice(raw, "malformed number", err)
	}
	if value < p.Min || value > p.Max {
		return 0, errors.NewInvalidPrice(raw, fmt.Sprintf("%.2f outside [%.2f, %.2f]", value, p.Min, p.Max), nil)
	}
	return value, nil
}

// Valid reports whether raw parses to an accepted price
func (p Parser) Valid(raw string) bool {
	_, err := p.Parse(raw)
	return err == nil
}

// normalize rewrites run with '.' as the only, decimal, separator.
func normalize(run string) (string, error) {
	dots, commas := strings.Count(run, "."), strings.Count(run, ",")

	switch {
	case dots == 0 && commas == 0:
		return run, nil

	case dots > 0 && commas > 0:
		last := strings.LastIndexAny(run, ".,")
		decimal := run[last : last+1]
		grouping := ","
		if decimal == "," {
			grouping = "."
		}
		if strings.Count(run, decimal) > 1 {
			return "", fmt.Errorf("repeated decimal separator %q", decimal)
		}
		if err := checkGroups(run[:last], grouping); err != nil {
			return "", err
		}
		return strings.ReplaceAll(run[:last], grouping, "") + "." + run[last+1:], nil

	default:
		sep := "."
		if commas > 0 {
			sep = ","
		}
		parts := strings.Split(run, sep)
		if len(parts) == 2 && len(parts[1]) != 3 {
			return parts[0] + "." + parts[1], nil
		}
		if err := checkGroups(run, sep); err != nil {
			return "", err
		}
		return strings.Join(parts, ""), nil
	}
}

// checkGroups requires every group after the first to hold three digits
func checkGroups(s, sep string) error {
	parts := strings.Split(s, sep)
	for _, g := range parts[1:] {
		if len(g) != 3 {
			return fmt.Errorf("bad digit group %q in %q", g, s)
		}
	}
	return nil
}
