package extractor

import "strings"

// Rule-based fallback used when the generation endpoint is unavailable or
// returns unparsable output. It scans the lowercase conversation text for a
// small fixed vocabulary and reports a fixed low confidence; the confidence
// gate downstream decides whether the result is worth storing.

var fallbackCities = []string{
	"mumbai", "delhi", "bangalore", "bengaluru", "kolkata", "chennai",
	"hyderabad", "pune", "ahmedabad", "surat", "jaipur", "lucknow",
	"kanpur", "nagpur", "indore", "patna", "bhopal", "ludhiana",
	"दिल्ली", "मुंबई", "जयपुर", "लखनऊ", "पटना",
}

var fallbackSectors = []string{
	"textile", "garment", "kirana", "retail", "food", "dairy", "farming",
	"manufacturing", "factory", "handicraft", "software", "transport",
	"कपड़ा", "दुकान", "खेती", "कारखाना",
}

var fallbackSizeWords = []string{
	"micro", "small", "medium", "chhota", "छोटा", "लघु", "मध्यम",
}

// fallbackSchemes are scheme-name fragments worth surfacing as candidates;
// the catalog matcher still decides whether they resolve to anything.
var fallbackSchemes = []string{
	"pmegp", "mudra", "udyam", "cgtmse", "stand-up india", "standup india",
	"pm vishwakarma", "msme loan", "मुद्रा", "उद्यम",
}

func keywordExtract(text string, confidence float64) *llmResponse {
	resp := &llmResponse{
		Confidence: confidence,
		Notes:      "rule-based keyword extraction; generation endpoint unavailable",
	}
	for _, city := range fallbackCities {
		if strings.Contains(text, city) {
			resp.Location = city
			break
		}
	}
	for _, sector := range fallbackSectors {
		if strings.Contains(text, sector) {
			resp.Industry = sector
			break
		}
	}
	for _, word := range fallbackSizeWords {
		if strings.Contains(text, word) {
			resp.BusinessSize = word
			break
		}
	}
	for _, scheme := range fallbackSchemes {
		if strings.Contains(text, scheme) {
			resp.SchemeInterests = append(resp.SchemeInterests, schemeMention{
				Name:          scheme,
				InterestLevel: "mentioned",
			})
		}
	}
	return resp
}
