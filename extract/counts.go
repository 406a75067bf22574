package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// multipliers maps abbreviated count suffixes to their factor. "mil" is the
// Spanish and Portuguese thousand; "mi" and "mln" are millions.
var multipliers = map[string]float64{
	"k":   1e3,
	"mil": 1e3,
	"m":   1e6,
	"mi":  1e6,
	"mln": 1e6,
	"b":   1e9,
}

var reCount = regexp.MustCompile(`^([0-9][0-9.,]*)([a-z]*)$`)

// NormalizeCount turns a displayed count such as "1,234", "1.2M" or
// "12,5 mil" into a plain integer string. It returns "" when s is not a count.
func NormalizeCount(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "").Replace(s)
	m := reCount.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	digits, suffix := m[1], m[2]

	if suffix == "" {
		plain := strings.NewReplacer(",", "", ".", "").Replace(digits)
		n, err := strconv.ParseInt(plain, 10, 64)
		if err != nil {
			return ""
		}
		return strconv.FormatInt(n, 10)
	}

	mult, ok := multipliers[suffix]
	if !ok {
		return ""
	}
	// With a suffix the last separator is decimal: "1.2k", "12,5 mil".
	if i := strings.LastIndexAny(digits, ".,"); i >= 0 {
		digits = strings.NewReplacer(",", "", ".", "").Replace(digits[:i]) + "." + digits[i+1:]
	}
	v, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return ""
	}
	return strconv.FormatInt(int64(math.Round(v*mult)), 10)
}
