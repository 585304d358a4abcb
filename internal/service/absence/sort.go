package absence

import (
	"cmp"
	"slices"
	"strings"

	"github.com/cmlabs-hris/absence-dashboard-go/internal/domain/absence"
)

// SortStudents orders the students of the range view. SortByName orders by
// (class, student key); any counter field orders by that counter and falls
// back to (class, student key) ascending on ties, whatever the direction.
func SortStudents(report *absence.Report, field absence.SortField, descending bool) []string {
	keys := make([]string, 0, len(report.RangeStats))
	for key := range report.RangeStats {
		keys = append(keys, key)
	}

	byName := func(a, b string) int {
		return cmp.Or(
			cmp.Compare(report.RangeStats[a].ClassName, report.RangeStats[b].ClassName),
			cmp.Compare(a, b),
		)
	}

	if field == "" || field == absence.SortByName {
		slices.SortFunc(keys, func(a, b string) int {
			if descending {
				return byName(b, a)
			}
			return byName(a, b)
		})
		return keys
	}

	value := counter(report, field)
	slices.SortFunc(keys, func(a, b string) int {
		c := cmp.Compare(value(a), value(b))
		if descending {
			c = -c
		}
		if c != 0 {
			return c
		}
		return byName(a, b)
	})
	return keys
}

func counter(report *absence.Report, field absence.SortField) func(string) int {
	return func(key string) int {
		s := report.RangeStats[key]
		switch field {
		case absence.SortByTardinessExcused:
			return s.Tardiness.Excused
		case absence.SortByTardinessUnexcused:
			return s.Tardiness.Unexcused
		case absence.SortByTardinessOpen:
			return s.Tardiness.Open
		case absence.SortByAbsenceExcused:
			return s.Absence.Excused
		case absence.SortByAbsenceUnexcused:
			return s.Absence.Unexcused
		case absence.SortByAbsenceOpen:
			return s.Absence.Open
		case absence.SortBySchoolYearTardiness:
			if sy, ok := report.SchoolYearStats[key]; ok {
				return sy.UnexcusedTardiness
			}
		case absence.SortBySchoolYearAbsence:
			if sy, ok := report.SchoolYearStats[key]; ok {
				return sy.UnexcusedAbsence
			}
		case absence.SortByRollingTardiness:
			if r, ok := report.RollingStats[key]; ok {
				return r.Tardiness.Total
			}
		case absence.SortByRollingAbsence:
			if r, ok := report.RollingStats[key]; ok {
				return r.Absence.Total
			}
		}
		return 0
	}
}

// FilterStudents keeps the students whose key or class contains query
// (case-insensitive) and, when className is set, who belong to that class.
func FilterStudents(report *absence.Report, keys []string, query, className string) []string {
	query = strings.ToLower(strings.TrimSpace(query))
	className = strings.TrimSpace(className)
	if query == "" && className == "" {
		return keys
	}

	filtered := make([]string, 0, len(keys))
	for _, key := range keys {
		class := report.RangeStats[key].ClassName
		if className != "" && !strings.EqualFold(class, className) {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(key), query) &&
			!strings.Contains(strings.ToLower(class), query) {
			continue
		}
		filtered = append(filtered, key)
	}
	return filtered
}
