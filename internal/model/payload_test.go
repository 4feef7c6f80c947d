package model_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remiges-tech/ingestworker/internal/model"
	"github.com/remiges-tech/ingestworker/wscutils"
)

func TestPayloadProfileMarshalJSONOmitsAbsentDOB(t *testing.T) {
	p := model.PayloadProfile{FirstName: "Ann", LastName: "Lee"}
	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"first_name":"Ann","last_name":"Lee"}`, string(b))
}

func TestPayloadProfileMarshalJSONPreservesExplicitNullDOB(t *testing.T) {
	p := model.PayloadProfile{
		FirstName: "Ann",
		LastName:  "Lee",
		DOB:       wscutils.Optional[string]{Present: true, Null: true},
	}
	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"first_name":"Ann","last_name":"Lee","dob":null}`, string(b))
}

func TestPayloadProfileMarshalJSONIncludesDOBValue(t *testing.T) {
	p := model.PayloadProfile{
		FirstName: "Ann",
		LastName:  "Lee",
		DOB:       wscutils.Optional[string]{Present: true, Value: "1990-01-02"},
	}
	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"first_name":"Ann","last_name":"Lee","dob":"1990-01-02"}`, string(b))
}

func TestNewPayloadAssemblesCanonicalContract(t *testing.T) {
	fields := map[string]string{
		"email":       "a@b.com",
		"phone":       "5551234567",
		"external_id": "ext-1",
		"first_name":  "Ann",
		"last_name":   "Lee",
	}
	dob := wscutils.Optional[string]{Present: true, Value: "1990-01-02"}

	payload := model.NewPayload("upload.csv", 7, fields, dob, "")

	assert.Equal(t, model.ContractVersion, payload.ContractVersion)
	assert.Equal(t, "upload.csv", payload.Source.FileName)
	assert.Equal(t, 7, payload.RowRef.RowNumber)
	assert.Equal(t, "a@b.com", payload.Identifiers.Email)
	assert.Equal(t, "5551234567", payload.Identifiers.Phone)
	assert.Equal(t, "ext-1", payload.Identifiers.ExternalID)
	assert.Equal(t, "Ann", payload.Profile.FirstName)
	assert.Equal(t, "Lee", payload.Profile.LastName)
	assert.True(t, payload.Profile.DOB.Present)
	assert.Equal(t, "1990-01-02", payload.Profile.DOB.Value)
}
