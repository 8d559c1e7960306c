package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// cityVariants maps lowercase spelling and script variants to the canonical
// English city name. Unseen places are title-cased, never dropped.
var cityVariants = map[string]string{
	"mumbai":       "Mumbai",
	"bombay":       "Mumbai",
	"मुंबई":        "Mumbai",
	"मुम्बई":       "Mumbai",
	"delhi":        "Delhi",
	"new delhi":    "Delhi",
	"dilli":        "Delhi",
	"दिल्ली":       "Delhi",
	"bangalore":    "Bengaluru",
	"bengaluru":    "Bengaluru",
	"बैंगलोर":      "Bengaluru",
	"बेंगलुरु":     "Bengaluru",
	"kolkata":      "Kolkata",
	"calcutta":     "Kolkata",
	"कोलकाता":      "Kolkata",
	"chennai":      "Chennai",
	"madras":       "Chennai",
	"சென்னை":       "Chennai",
	"चेन्नई":       "Chennai",
	"hyderabad":    "Hyderabad",
	"हैदराबाद":     "Hyderabad",
	"pune":         "Pune",
	"poona":        "Pune",
	"पुणे":         "Pune",
	"ahmedabad":    "Ahmedabad",
	"amdavad":      "Ahmedabad",
	"અમદાવાદ":      "Ahmedabad",
	"अहमदाबाद":     "Ahmedabad",
	"surat":        "Surat",
	"सूरत":         "Surat",
	"jaipur":       "Jaipur",
	"जयपुर":        "Jaipur",
	"lucknow":      "Lucknow",
	"लखनऊ":         "Lucknow",
	"kanpur":       "Kanpur",
	"कानपुर":       "Kanpur",
	"nagpur":       "Nagpur",
	"नागपुर":       "Nagpur",
	"indore":       "Indore",
	"इंदौर":        "Indore",
	"patna":        "Patna",
	"पटना":         "Patna",
	"bhopal":       "Bhopal",
	"भोपाल":        "Bhopal",
	"ludhiana":     "Ludhiana",
	"ਲੁਧਿਆਣਾ":      "Ludhiana",
	"लुधियाना":     "Ludhiana",
	"coimbatore":   "Coimbatore",
	"கோயம்புத்தூர்": "Coimbatore",
	"varanasi":     "Varanasi",
	"banaras":      "Varanasi",
	"वाराणसी":      "Varanasi",
	"बनारस":        "Varanasi",
}

var titleCaser = cases.Title(language.English)

// Location maps a raw place name to its canonical city name.
func Location(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return ""
	}
	if canonical, ok := cityVariants[key]; ok {
		return canonical
	}
	return titleCaser.String(key)
}
