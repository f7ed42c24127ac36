package standings

import (
	"fmt"
	"sort"

	"raceadmin/internal/domain"
)

// ValidateBrackets checks that the brackets configured for one series/year
// are mutually exclusive. Gaps are allowed.
func ValidateBrackets(divisions []domain.DivisionConfig) error {
	sorted := make([]domain.DivisionConfig, len(divisions))
	copy(sorted, divisions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LowAge < sorted[j].LowAge })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].LowAge <= sorted[i-1].HighAge {
			return fmt.Errorf("division brackets %s and %s overlap",
				sorted[i-1].Label(), sorted[i].Label())
		}
	}
	return nil
}

// AssignDivision returns the bracket containing the age, or nil when no
// bracket covers it (the runner then ranks overall and by gender only).
func AssignDivision(divisions []domain.DivisionConfig, age int) *domain.DivisionConfig {
	for i := range divisions {
		if divisions[i].Contains(age) {
			return &divisions[i]
		}
	}
	return nil
}
