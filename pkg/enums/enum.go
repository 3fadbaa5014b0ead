package enums

import (
	"fmt"
	"slices"
	"strings"
)

// parse matches raw against the known values of one enum, optionally after
// normalizing it.
func parse[T ~string](raw string, known []T, kind string, normalize func(string) string) (T, error) {
	value := raw
	if normalize != nil {
		value = normalize(raw)
	}
	if i := slices.Index(known, T(value)); i >= 0 {
		return known[i], nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, raw)
}

func lowerTrim(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
func upperTrim(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }
