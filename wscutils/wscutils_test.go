package wscutils

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionalUnmarshalAbsentKeepsZeroValue(t *testing.T) {
	type holder struct {
		DOB Optional[string] `json:"dob"`
	}
	var h holder
	require.NoError(t, json.Unmarshal([]byte(`{}`), &h))
	assert.False(t, h.DOB.Present)
	assert.False(t, h.DOB.Null)
	assert.Equal(t, "", h.DOB.Value)
}

func TestOptionalUnmarshalExplicitNull(t *testing.T) {
	type holder struct {
		DOB Optional[string] `json:"dob"`
	}
	var h holder
	require.NoError(t, json.Unmarshal([]byte(`{"dob":null}`), &h))
	assert.True(t, h.DOB.Present)
	assert.True(t, h.DOB.Null)
}

func TestOptionalUnmarshalValue(t *testing.T) {
	type holder struct {
		DOB Optional[string] `json:"dob"`
	}
	var h holder
	require.NoError(t, json.Unmarshal([]byte(`{"dob":"1990-01-02"}`), &h))
	assert.True(t, h.DOB.Present)
	assert.False(t, h.DOB.Null)
	assert.Equal(t, "1990-01-02", h.DOB.Value)
}

func TestOptionalMarshalDirect(t *testing.T) {
	absent := Optional[string]{}
	b, err := absent.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))

	explicitNull := Optional[string]{Present: true, Null: true}
	b, err = explicitNull.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))

	value := Optional[string]{Present: true, Value: "1990-01-02"}
	b, err = value.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"1990-01-02"`, string(b))
}

func TestOptionalGet(t *testing.T) {
	_, ok := Optional[string]{}.Get()
	assert.False(t, ok)

	_, ok = Optional[string]{Present: true, Null: true}.Get()
	assert.False(t, ok)

	v, ok := Optional[string]{Present: true, Value: "x"}.Get()
	assert.True(t, ok)
	assert.Equal(t, "x", v)
}

func TestOptionalValidatorValue(t *testing.T) {
	assert.Equal(t, "", Optional[string]{}.ValidatorValue())
	assert.Equal(t, "", Optional[string]{Present: true, Null: true}.ValidatorValue())
	assert.Equal(t, "x", Optional[string]{Present: true, Value: "x"}.ValidatorValue())
}
