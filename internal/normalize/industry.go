package normalize

import "strings"

// industryKeywords maps each taxonomy category to the multilingual keywords
// that select it. Order matters: the first category whose keyword appears in
// the raw value wins, so more specific sectors come before catch-alls.
var industryKeywords = []struct {
	category string
	keywords []string
}{
	{"Food Processing", []string{"food", "dairy", "bakery", "snack", "masala", "pickle", "खाद्य", "डेयरी", "बेकरी", "अचार"}},
	{"Textiles", []string{"textile", "garment", "cloth", "apparel", "saree", "fabric", "weav", "कपड़ा", "वस्त्र", "साड़ी", "बुनाई"}},
	{"Handicrafts", []string{"handicraft", "craft", "artisan", "pottery", "handloom", "हस्तशिल्प", "कारीगर", "हथकरघा"}},
	{"Agriculture", []string{"agri", "farm", "crop", "horticulture", "poultry", "खेती", "कृषि", "फसल", "मुर्गी"}},
	{"Construction", []string{"construction", "builder", "cement", "contractor", "निर्माण", "ठेकेदार"}},
	{"Technology", []string{"software", "tech", "it services", "app", "digital", "सॉफ्टवेयर", "टेक"}},
	{"Logistics", []string{"logistics", "transport", "courier", "warehouse", "परिवहन", "ट्रांसपोर्ट", "गोदाम"}},
	{"Retail", []string{"retail", "shop", "store", "kirana", "trading", "दुकान", "किराना", "व्यापार"}},
	{"Manufacturing", []string{"manufactur", "factory", "production", "mill", "unit", "कारखाना", "फैक्टरी", "उत्पादन", "मिल"}},
	{"Services", []string{"service", "consult", "repair", "salon", "सेवा", "मरम्मत", "सैलून"}},
}

// Industry maps a raw sector description to the fixed taxonomy. Values that
// match no category keyword are title-cased and kept.
func Industry(raw string) string {
	needle := strings.ToLower(strings.TrimSpace(raw))
	if needle == "" {
		return ""
	}
	for _, entry := range industryKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(needle, kw) {
				return entry.category
			}
		}
	}
	return titleCaser.String(needle)
}
