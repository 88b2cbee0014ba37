package discovery

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseISODuration converts an ISO-8601 duration such as "PT1H2M3S" or
// "P1DT30M" into seconds. Year and month designators are rejected.
func ParseISODuration(value string) (int, error) {
	s := strings.ToUpper(strings.TrimSpace(value))
	if !strings.HasPrefix(s, "P") || len(s) < 3 {
		return 0, fmt.Errorf("invalid duration %q", value)
	}
	s = s[1:]

	total := 0
	inTime := false
	num := ""
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			num += string(r)
		case r == 'T':
			if inTime || num != "" {
				return 0, fmt.Errorf("invalid duration %q", value)
			}
			inTime = true
		default:
			if num == "" {
				return 0, fmt.Errorf("invalid duration %q", value)
			}
			n, err := strconv.Atoi(num)
			if err != nil {
				return 0, fmt.Errorf("invalid duration %q: %w", value, err)
			}
			num = ""
			switch {
			case r == 'W' && !inTime:
				total += n * 7 * 86400
			case r == 'D' && !inTime:
				total += n * 86400
			case r == 'H' && inTime:
				total += n * 3600
			case r == 'M' && inTime:
				total += n * 60
			case r == 'S' && inTime:
				total += n
			default:
				return 0, fmt.Errorf("invalid duration %q: unsupported designator %q", value, r)
			}
		}
	}
	if num != "" {
		return 0, fmt.Errorf("invalid duration %q: trailing number", value)
	}
	return total, nil
}
