package deals

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Segment is one piece of a parsed model response. Deal is set for a
// structured deal block; otherwise Text holds the literal output.
type Segment struct {
	Text string
	Deal *Record
}

// ParseSegments splits raw model output into text and deal segments. Text
// between a matched delimiter pair is decoded as one JSON deal; malformed
// JSON is re-emitted as literal text with the delimiters intact so nothing
// is silently lost. Whitespace-only text between blocks is dropped.
func ParseSegments(content string) []Segment {
	var segments []Segment
	remaining := content

	for len(remaining) > 0 {
		openIdx := strings.Index(remaining, openDelim)
		if openIdx == -1 {
			if strings.TrimSpace(remaining) != "" {
				segments = append(segments, Segment{Text: remaining})
			}
			break
		}

		if before := remaining[:openIdx]; strings.TrimSpace(before) != "" {
			segments = append(segments, Segment{Text: before})
		}

		afterOpen := remaining[openIdx+len(openDelim):]
		closeIdx := strings.Index(afterOpen, closeDelim)
		if closeIdx == -1 {
			// No closing delimiter, keep the rest as text.
			if rest := remaining[openIdx:]; strings.TrimSpace(rest) != "" {
				segments = append(segments, Segment{Text: rest})
			}
			break
		}

		jsonStr := strings.TrimSpace(afterOpen[:closeIdx])
		if record, err := decodeRecord(jsonStr); err != nil {
			segments = append(segments, Segment{Text: openDelim + jsonStr + closeDelim})
		} else {
			segments = append(segments, Segment{Deal: record})
		}

		remaining = afterOpen[closeIdx+len(closeDelim):]
	}

	return segments
}

func decodeRecord(jsonStr string) (*Record, error) {
	record := Record{
		Status:      "strong",
		StatusLabel: "Deal",
		Owner:       Owner{Name: "Unknown"},
	}
	if err := json.Unmarshal([]byte(jsonStr), &record); err != nil {
		return nil, err
	}
	record.ID = uuid.NewString()
	return &record, nil
}

var arrayGreedy = regexp.MustCompile(`(?s)\[.*\]`)

// ExtractDealArray finds the JSON array of deal records in free-form model
// output. It tries the widest first-to-last bracket span first, then a
// balanced scan from the first bracket, and reports false when neither
// decodes.
func ExtractDealArray(text string) ([]Record, bool) {
	candidates := []string{arrayGreedy.FindString(text), balancedArray(text)}
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		var records []Record
		if err := json.Unmarshal([]byte(candidate), &records); err != nil {
			continue
		}
		return records, true
	}
	return nil, false
}

func balancedArray(text string) string {
	start := strings.IndexByte(text, '[')
	if start == -1 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
