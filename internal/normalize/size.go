package normalize

import "strings"

// Business size category thresholds. Employee count is the strongest signal,
// then annual turnover (INR), then size adjectives in the raw text.
const (
	microEmployeeMax = 10
	smallEmployeeMax = 50
	microTurnoverMax = 1_00_00_000   // 1 crore
	smallTurnoverMax = 10_00_00_000  // 10 crore
)

var sizeAdjectives = []struct {
	size     string
	keywords []string
}{
	{"Micro", []string{"micro", "tiny", "very small", "chhota", "छोटा", "छोटी", "सूक्ष्म"}},
	{"Medium", []string{"medium", "mid-size", "madhyam", "मध्यम"}},
	{"Small", []string{"small", "laghu", "लघु"}},
}

// BusinessSize classifies by priority order: employee count when known, else
// turnover, else size adjectives in rawText. Returns "" when nothing applies.
func BusinessSize(employeeCount int, annualTurnover int64, rawText string) string {
	if employeeCount > 0 {
		switch {
		case employeeCount <= microEmployeeMax:
			return "Micro"
		case employeeCount <= smallEmployeeMax:
			return "Small"
		default:
			return "Medium"
		}
	}
	if annualTurnover > 0 {
		switch {
		case annualTurnover <= microTurnoverMax:
			return "Micro"
		case annualTurnover <= smallTurnoverMax:
			return "Small"
		default:
			return "Medium"
		}
	}
	needle := strings.ToLower(rawText)
	for _, entry := range sizeAdjectives {
		for _, kw := range entry.keywords {
			if strings.Contains(needle, kw) {
				return entry.size
			}
		}
	}
	return ""
}
