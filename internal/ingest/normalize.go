package ingest

import (
	"strings"

	"github.com/remiges-tech/ingestworker/internal/model"
	"github.com/remiges-tech/ingestworker/wscutils"
)

// canonicalFields are the keys the batch's column_mapping object may use
// (spec §4.6 step 4, §3 canonical payload).
var canonicalFields = []string{"email", "phone", "external_id", "first_name", "last_name", "dob"}

// rawMap builds the normalized-header-keyed raw map for one CSV record,
// trimming surrounding whitespace from each value and discarding fields
// beyond the header count (spec §4.6 steps 1 and 4).
func rawMap(headers []string, record []string) map[string]string {
	m := make(map[string]string, len(headers))
	for i, h := range headers {
		if i >= len(record) {
			break
		}
		m[h] = strings.TrimSpace(record[i])
	}
	return m
}

// extractCanonical applies the batch's column mapping to raw, trimming
// each extracted value and mapping the empty string to absent (spec §4.6
// step 4, §8 "trimming maps whitespace-only strings to absent").
func extractCanonical(mapping model.ColumnMapping, raw map[string]string) map[string]string {
	out := make(map[string]string, len(canonicalFields))
	for _, field := range canonicalFields {
		header, ok := mapping[field]
		if !ok {
			continue
		}
		v, ok := raw[header]
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out[field] = v
	}
	return out
}

// BuildRow assembles the raw map, the extracted canonical fields, and the
// versioned payload for one data row, grounded on spec §4.6 step 4.
// The payload's dob is a wscutils.Optional[string], the same three-state
// rule the canonical contract uses for dob; BuildRow leaves it absent when
// no dob value was extracted and sets it to the value otherwise, never to
// an explicit null.
func BuildRow(fileName string, headers []string, record []string, mapping model.ColumnMapping, rowNumber int) (raw map[string]string, fields map[string]string, payload model.Payload) {
	raw = rawMap(headers, record)
	fields = extractCanonical(mapping, raw)

	var dob wscutils.Optional[string]
	if v, ok := fields["dob"]; ok {
		dob = wscutils.Optional[string]{Present: true, Value: v}
	}

	payload = model.NewPayload(fileName, rowNumber, fields, dob, "")
	return raw, fields, payload
}

// dobPointer returns a *string suitable for ValidateFields: nil when dob
// is absent, and the trimmed value when present (dob is never explicitly
// null coming out of CSV text — null would only arise from a richer
// upstream contract than a text file; BuildRow never sets Null=true).
func dobPointer(fields map[string]string) *string {
	if v, ok := fields["dob"]; ok {
		return &v
	}
	return nil
}
