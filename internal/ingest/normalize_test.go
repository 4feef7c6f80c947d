package ingest

import (
	"testing"

	"github.com/remiges-tech/ingestworker/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRowExtractsMappedCanonicalFields(t *testing.T) {
	headers := NormalizeHeaders([]string{"Email", "Phone", "First", "Last", "Birth Date"})
	mapping := model.ColumnMapping{
		"email":      "Email",
		"phone":      "Phone",
		"first_name": "First",
		"last_name":  "Last",
		"dob":        "Birth Date",
	}
	record := []string{" a@b.com ", "5551234567", "Ann", "Lee", "1990-01-02"}

	raw, fields, payload := BuildRow("upload.csv", headers, record, mapping, 1)

	require.Equal(t, "a@b.com", raw["Email"])
	assert.Equal(t, "a@b.com", fields["email"])
	assert.Equal(t, "5551234567", fields["phone"])
	assert.Equal(t, "Ann", fields["first_name"])
	assert.Equal(t, "Lee", fields["last_name"])
	assert.Equal(t, "1990-01-02", fields["dob"])

	assert.Equal(t, model.ContractVersion, payload.ContractVersion)
	assert.Equal(t, 1, payload.RowRef.RowNumber)
	assert.Equal(t, "upload.csv", payload.Source.FileName)
	assert.True(t, payload.Profile.DOB.Present)
	assert.False(t, payload.Profile.DOB.Null)
	assert.Equal(t, "1990-01-02", payload.Profile.DOB.Value)
}

func TestExtractCanonicalTrimsAndDropsBlank(t *testing.T) {
	mapping := model.ColumnMapping{"first_name": "First"}
	raw := map[string]string{"First": "   "}
	fields := extractCanonical(mapping, raw)
	_, ok := fields["first_name"]
	assert.False(t, ok, "whitespace-only value should be treated as absent")
}

func TestDobPointerAbsentWhenNoDOBColumn(t *testing.T) {
	fields := map[string]string{"first_name": "Ann"}
	assert.Nil(t, dobPointer(fields))
}
