// Package normalize maps raw multilingual conversation values to canonical
// English forms: city names, industry categories, INR amounts, business size
// categories and language tags. Everything here is a pure function.
package normalize

import "unicode"

// TagMixed marks code-switched Hindi/English text, the dominant register in
// MSME advisory conversations.
const TagMixed = "hi-en"

var scriptTags = []struct {
	table *unicode.RangeTable
	tag   string
}{
	{unicode.Latin, "en"},
	{unicode.Devanagari, "hi"},
	{unicode.Bengali, "bn"},
	{unicode.Tamil, "ta"},
	{unicode.Telugu, "te"},
	{unicode.Kannada, "kn"},
	{unicode.Malayalam, "ml"},
	{unicode.Gujarati, "gu"},
	{unicode.Gurmukhi, "pa"},
	{unicode.Oriya, "or"},
}

// DetectLanguages scans the Unicode script ranges used in text and returns
// the language tags they map to, in a stable order. Text containing both
// Latin and Devanagari additionally gets the TagMixed code-switch tag.
func DetectLanguages(text string) []string {
	seen := make(map[string]bool)
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		for _, st := range scriptTags {
			if unicode.Is(st.table, r) {
				seen[st.tag] = true
				break
			}
		}
	}

	var tags []string
	for _, st := range scriptTags {
		if seen[st.tag] {
			tags = append(tags, st.tag)
		}
	}
	if seen["en"] && seen["hi"] {
		tags = append(tags, TagMixed)
	}
	return tags
}
