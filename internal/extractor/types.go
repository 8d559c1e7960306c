package extractor

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/siddham-jain/msme-mitr-sub000/internal/store"
)

// Extraction methods recorded on stored attributes.
const (
	MethodAI       = "ai"
	MethodFallback = "fallback"
)

// ExtractionResult bundles the normalized attributes, matched scheme-interest
// candidates and extraction metadata for one conversation.
type ExtractionResult struct {
	ConversationID    uuid.UUID
	UserID            uuid.UUID
	Location          string
	Industry          string
	BusinessSize      store.BusinessSize
	AnnualTurnover    int64 // INR, 0 = unknown
	EmployeeCount     int   // 0 = unknown
	SchemeInterests   []SchemeCandidate
	Confidence        float64
	DetectedLanguages []string
	Notes             string
	Method            string
	// Original keeps raw pre-normalization values that differ from their
	// canonical form, for audit.
	Original map[string]string
}

// SchemeCandidate is an extracted scheme mention already matched against the
// active catalog.
type SchemeCandidate struct {
	SchemeID   uuid.UUID
	SchemeName string
	Level      store.InterestLevel
}

// llmResponse is the strict output schema the extraction prompt requests.
type llmResponse struct {
	Location          string          `json:"location"`
	Industry          string          `json:"industry"`
	BusinessSize      string          `json:"business_size"`
	AnnualTurnover    flexibleString  `json:"annual_turnover"`
	EmployeeCount     int             `json:"employee_count"`
	SchemeInterests   []schemeMention `json:"scheme_interests"`
	Confidence        float64         `json:"confidence"`
	Notes             string          `json:"notes"`
	DetectedLanguages []string        `json:"detected_languages"`
}

type schemeMention struct {
	Name          string `json:"name"`
	InterestLevel string `json:"interest_level"` // mentioned | inquired | detailed
}

// flexibleString tolerates the model returning a JSON number where the schema
// asks for a string ("annual_turnover": 500000 instead of "5 lakh").
type flexibleString string

func (f *flexibleString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexibleString(s)
		return nil
	}
	*f = flexibleString(data)
	return nil
}

func parseLevel(raw string) store.InterestLevel {
	switch store.InterestLevel(strings.ToLower(strings.TrimSpace(raw))) {
	case store.LevelDetailed:
		return store.LevelDetailed
	case store.LevelInquired:
		return store.LevelInquired
	default:
		return store.LevelMentioned
	}
}
