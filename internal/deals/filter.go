package deals

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Filter modes for under-minimum land deals.
const (
	ModeAnnotate = "annotate"
	ModeDrop     = "drop"
)

// Policy enforces the minimum-acreage floor on land deals. Records whose
// acreage cannot be determined from details pass through unchanged.
type Policy struct {
	MinAcres float64
	Mode     string
}

func (p Policy) belowMinimum(details string) (float64, bool) {
	acres, ok := ExtractAcreage(details)
	return acres, ok && acres < p.MinAcres
}

func (p Policy) note(address string, acres float64) string {
	return "\n*[Skipped: " + address + " — " + formatAcres(acres) +
		" acres is below the " + formatAcres(p.MinAcres) + "-acre minimum]*\n"
}

func formatAcres(acres float64) string {
	return strconv.FormatFloat(acres, 'f', -1, 64)
}

// FilterSegments applies the policy to parsed segments. Under-minimum deals
// are dropped or replaced with a visible skipped note depending on Mode.
// Applying the filter twice yields the same result.
func (p Policy) FilterSegments(segments []Segment) []Segment {
	out := make([]Segment, 0, len(segments))
	for _, segment := range segments {
		if segment.Deal == nil {
			out = append(out, segment)
			continue
		}
		acres, below := p.belowMinimum(segment.Deal.Details)
		if !below {
			out = append(out, segment)
			continue
		}
		if p.Mode == ModeDrop {
			continue
		}
		out = append(out, Segment{Text: p.note(segment.Deal.Address, acres)})
	}
	return out
}

var dealBlockPattern = regexp.MustCompile(`(?s)<<<DEAL>>>.*?<<<END_DEAL>>>`)

// FilterText applies the policy directly to raw model output, rewriting only
// the delimited deal blocks and leaving all surrounding text byte-for-byte
// intact. Blocks whose JSON does not parse are kept as-is.
func (p Policy) FilterText(text string) string {
	return dealBlockPattern.ReplaceAllStringFunc(text, func(block string) string {
		jsonStr := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(block, openDelim), closeDelim))
		var deal Record
		if err := json.Unmarshal([]byte(jsonStr), &deal); err != nil {
			return block
		}
		acres, below := p.belowMinimum(deal.Details)
		if !below {
			return block
		}
		if p.Mode == ModeDrop {
			return ""
		}
		return p.note(deal.Address, acres)
	})
}

// FilterRecords drops under-minimum records from a scan result. Scan output
// is a bare JSON array with no place for a skipped note, so Mode does not
// apply here.
func (p Policy) FilterRecords(records []Record) []Record {
	kept := make([]Record, 0, len(records))
	for _, record := range records {
		if _, below := p.belowMinimum(record.Details); below {
			continue
		}
		kept = append(kept, record)
	}
	return kept
}
