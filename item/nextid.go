package item

import (
	"fmt"
	"regexp"
	"strconv"
)

// FirstID is assigned when no item exists yet.
const FirstID = "I001"

var numberPattern = regexp.MustCompile(`^I(\d+)$`)

// IsNumber reports whether s is a well-formed item number.
func IsNumber(s string) bool {
	return numberPattern.MatchString(s)
}

// NextID derives the item number following latest, the lexicographically
// largest existing one. The suffix is incremented and zero-padded to three
// digits, growing past three digits instead of wrapping.
//
// Because the ordering is lexicographic, once I1000 exists the largest id
// is still I999 and NextID keeps proposing I1000; callers must check the
// candidate is free.
func NextID(latest string) (string, error) {
	if latest == "" {
		return FirstID, nil
	}
	m := numberPattern.FindStringSubmatch(latest)
	if m == nil {
		return "", fmt.Errorf("item: malformed item number %q", latest)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return "", fmt.Errorf("item: item number %q: %w", latest, err)
	}
	return fmt.Sprintf("I%03d", n+1), nil
}
