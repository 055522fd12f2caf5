package attendance

import (
	"regexp"
	"strings"
)

// rollPattern matches institute email local-parts: admission year,
// ug/pg, a 2-4 letter branch code, and the roll serial.
var rollPattern = regexp.MustCompile(`^([0-9]{4})(ug|pg)([a-z]{2,4})([0-9]+)$`)

// unknownField is the sentinel for local-parts that do not match.
const unknownField = "-"

// Roll is the academic identity derived from an email local-part.
type Roll struct {
	Year    string
	Program string
	Branch  string
	RollNo  string
	// RollNumber is the full uppercased local-part, kept even when
	// the pattern does not match.
	RollNumber string
}

// ParseRoll derives roll fields from an email address. Pure; two
// emails differing only in case parse identically.
func ParseRoll(email string) Roll {
	local := strings.TrimSpace(email)
	if i := strings.IndexByte(local, '@'); i >= 0 {
		local = local[:i]
	}
	local = strings.ToLower(local)

	r := Roll{
		Year:       unknownField,
		Program:    unknownField,
		Branch:     unknownField,
		RollNo:     unknownField,
		RollNumber: strings.ToUpper(local),
	}
	m := rollPattern.FindStringSubmatch(local)
	if m == nil {
		return r
	}
	r.Year = m[1]
	r.Program = strings.ToUpper(m[2])
	r.Branch = strings.ToUpper(m[3])
	r.RollNo = m[4]
	return r
}
