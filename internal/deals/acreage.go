package deals

import (
	"regexp"
	"strconv"
)

var acreagePattern = regexp.MustCompile(`(?i)(\d+\.?\d*)\s*acre`)

// ExtractAcreage pulls the first acreage figure out of free text such as a
// deal's details line ("3.5 acres · R-3 zoning"). The second return is false
// when no figure is present, which callers must treat as "unknown" rather
// than zero.
func ExtractAcreage(text string) (float64, bool) {
	m := acreagePattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	acres, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return acres, true
}
