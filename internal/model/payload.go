package model

import (
	"encoding/json"

	"github.com/remiges-tech/ingestworker/wscutils"
)

// ContractVersion is the literal contract_version stamped on every payload.
const ContractVersion = "v1"

// Payload is the canonical row contract (spec §3, §6). Optional fields use
// `omitempty` so an absent value never serializes; dob uses
// wscutils.Optional[string] because it alone may be explicitly null rather
// than merely absent.
type Payload struct {
	ContractVersion string          `json:"contract_version"`
	Source          PayloadSource   `json:"source"`
	RowRef          PayloadRowRef   `json:"row_ref"`
	Identifiers     PayloadIdentifiers `json:"identifiers"`
	Profile         PayloadProfile  `json:"profile"`
	Notes           string          `json:"notes,omitempty"`
}

type PayloadSource struct {
	Vendor   string `json:"vendor,omitempty"`
	FileName string `json:"file_name,omitempty"`
}

type PayloadRowRef struct {
	RowNumber int `json:"row_number"`
}

type PayloadIdentifiers struct {
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	ExternalID string `json:"external_id,omitempty"`
}

type PayloadProfile struct {
	FirstName string                    `json:"first_name,omitempty"`
	LastName  string                    `json:"last_name,omitempty"`
	DOB       wscutils.Optional[string] `json:"dob,omitempty"`
}

// MarshalJSON hand-rolls field inclusion because struct-typed fields are
// never considered "empty" by encoding/json's omitempty: without this, a
// fully-absent dob would serialize as the Optional's zero value instead of
// being dropped from the object, violating spec §9's "never emit undefined"
// (and its dual, never silently inventing a key that was never supplied).
func (p PayloadProfile) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 3)
	if p.FirstName != "" {
		out["first_name"] = p.FirstName
	}
	if p.LastName != "" {
		out["last_name"] = p.LastName
	}
	if p.DOB.Present {
		if p.DOB.Null {
			out["dob"] = nil
		} else {
			out["dob"] = p.DOB.Value
		}
	}
	return json.Marshal(out)
}

// NewPayload assembles the canonical payload for one data row. fileName
// mirrors the batch's original file name (spec §4.6 step 4); fields is the
// set of canonical values extracted from the row after trim/absent mapping.
func NewPayload(fileName string, rowNumber int, fields map[string]string, dob wscutils.Optional[string], notes string) Payload {
	return Payload{
		ContractVersion: ContractVersion,
		Source:          PayloadSource{FileName: fileName},
		RowRef:          PayloadRowRef{RowNumber: rowNumber},
		Identifiers: PayloadIdentifiers{
			Email:      fields["email"],
			Phone:      fields["phone"],
			ExternalID: fields["external_id"],
		},
		Profile: PayloadProfile{
			FirstName: fields["first_name"],
			LastName:  fields["last_name"],
			DOB:       dob,
		},
		Notes: notes,
	}
}
