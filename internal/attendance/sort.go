package attendance

import (
	"sort"
	"strings"

	"github.com/Ignisight/attendance-server/internal/model"
)

// SortByRoll orders records by roll number, comparing digit runs
// numerically so CM9 sorts before CM10.
func SortByRoll(recs []model.Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		return naturalLess(recs[i].RollNumber, recs[j].RollNumber)
	})
}

func naturalLess(a, b string) bool {
	for len(a) > 0 && len(b) > 0 {
		if isDigit(a[0]) && isDigit(b[0]) {
			da, a2 := digitRun(a)
			db, b2 := digitRun(b)
			if da != db {
				// Compare numerically: shorter trimmed run is
				// smaller, equal lengths compare as strings.
				ta, tb := strings.TrimLeft(da, "0"), strings.TrimLeft(db, "0")
				if len(ta) != len(tb) {
					return len(ta) < len(tb)
				}
				return ta < tb
			}
			a, b = a2, b2
			continue
		}
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func digitRun(s string) (run, rest string) {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	return s[:i], s[i:]
}
