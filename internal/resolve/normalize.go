// Package resolve matches canonical records across sources into facility
// clusters: spatial candidate generation, weighted fuzzy scoring, union-find
// clustering, and per-attribute merging.
package resolve

import (
	"regexp"
	"strings"
)

// suffixes lists trailing tokens stripped during name normalization: legal
// entity forms plus the facility designators sources append inconsistently.
var suffixes = []string{
	" OIL FIELD", " GAS FIELD", " OILFIELD", " FIELD",
	" COMPLEX", " TERMINAL", " PLATFORM", " UNIT",
	" LLC", " L.L.C.", " INC", " INC.", " INCORPORATED",
	" CORP", " CORP.", " CORPORATION",
	" LTD", " LTD.", " LIMITED",
	" CO", " CO.", " PLC", " S.A.", " SA", " AS", " NV", " N.V.",
}

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

// NormalizeName standardizes a facility or operator name for matching:
// uppercase, trailing designators stripped, punctuation removed, spaces
// collapsed.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	name = strings.ToUpper(name)

	for _, suffix := range suffixes {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix)
			break
		}
	}

	name = strings.NewReplacer(
		",", "",
		".", "",
		"'", "",
		"\"", "",
		"(", "",
		")", "",
		"&", "AND",
		"-", " ",
		"/", " ",
	).Replace(name)

	name = multiSpaceRe.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}
