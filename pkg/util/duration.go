package util

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ParseLookback parses window tokens such as "7d", "2w" or "12h". Anything
// time.ParseDuration understands is accepted too. The result is always positive.
func ParseLookback(token string) (time.Duration, error) {
	token = strings.TrimSpace(strings.ToLower(token))
	if token == "" {
		return 0, fmt.Errorf("empty period")
	}

	unit := token[len(token)-1]
	var per time.Duration
	switch unit {
	case 'd':
		per = 24 * time.Hour
	case 'w':
		per = 7 * 24 * time.Hour
	}

	if per > 0 {
		n, err := strconv.Atoi(token[:len(token)-1])
		if err != nil {
			return 0, fmt.Errorf("invalid period %q", token)
		}
		if n <= 0 {
			return 0, fmt.Errorf("period %q must be positive", token)
		}
		if int64(n) > math.MaxInt64/int64(per) {
			return 0, fmt.Errorf("period %q is too long", token)
		}
		return time.Duration(n) * per, nil
	}

	d, err := time.ParseDuration(token)
	if err != nil {
		return 0, fmt.Errorf("invalid period %q", token)
	}
	if d <= 0 {
		return 0, fmt.Errorf("period %q must be positive", token)
	}
	return d, nil
}
