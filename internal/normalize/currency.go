package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// amountPattern captures a number and an optional Indian magnitude suffix:
// "5 lakh", "2.5cr", "10k", "₹50,000".
var amountPattern = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)\s*(crores?|crs?|करोड़|करोड|lakhs?|lacs?|लाख|thousands?|k|हज़ार|हजार)?`)

var suffixMultipliers = map[string]float64{
	"crore": 1e7, "crores": 1e7, "cr": 1e7, "crs": 1e7, "करोड़": 1e7, "करोड": 1e7,
	"lakh": 1e5, "lakhs": 1e5, "lac": 1e5, "lacs": 1e5, "लाख": 1e5,
	"thousand": 1e3, "thousands": 1e3, "k": 1e3, "हज़ार": 1e3, "हजार": 1e3,
}

// INRAmount parses a free-text currency phrase into a single INR value.
// Handles lakh/crore/thousand suffixes in Latin and Devanagari, currency
// markers and digit grouping. Returns false when no number is present.
func INRAmount(raw string) (int64, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0, false
	}
	for _, marker := range []string{"₹", "rs.", "rs", "inr", "rupees", "rupee", "रुपये", "रुपए"} {
		s = strings.ReplaceAll(s, marker, " ")
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	match := amountPattern.FindStringSubmatch(s)
	if match == nil || match[1] == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	if mult, ok := suffixMultipliers[match[2]]; ok {
		value *= mult
	}
	return int64(value), true
}
