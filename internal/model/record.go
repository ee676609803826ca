// Package model defines the registry record types shared across the pipeline.
package model

import "fmt"

// MatchMode selects the search semantics applied to the keywords.
type MatchMode string

const (
	// MatchAll requires every keyword to appear.
	MatchAll MatchMode = "all"
	// MatchAny requires at least one keyword to appear.
	MatchAny MatchMode = "min"
	// MatchExact requires the exact company name.
	MatchExact MatchMode = "exact"
)

// matchModeCodes maps each mode to the register's internal option code.
var matchModeCodes = map[MatchMode]string{
	MatchAll:   "1",
	MatchAny:   "2",
	MatchExact: "3",
}

// ParseMatchMode validates a CLI mode string. Unknown modes are rejected
// here, before any network traffic happens.
func ParseMatchMode(s string) (MatchMode, error) {
	m := MatchMode(s)
	if _, ok := matchModeCodes[m]; !ok {
		return "", fmt.Errorf("unknown match mode %q (want all, min or exact)", s)
	}
	return m, nil
}

// Code returns the numeric option code the search form expects.
func (m MatchMode) Code() (string, error) {
	code, ok := matchModeCodes[m]
	if !ok {
		return "", fmt.Errorf("unknown match mode %q", string(m))
	}
	return code, nil
}

// SearchQuery is the immutable input to one session walk.
type SearchQuery struct {
	Keywords string
	Mode     MatchMode
}

// HistoryEntry is one (event, date) pair from a result row's history columns.
type HistoryEntry struct {
	Event string
	Date  string
}

// ListingRecord holds the facts of one search-results grid row.
// The six grid fields are always populated; History may be empty.
type ListingRecord struct {
	Court              string
	Name               string
	Seat               string
	Status             string
	DocumentsAvailable bool
	History            []HistoryEntry
}

// DocumentRecord holds the facts extracted from one structured document
// export. Every field is optional; the empty string means the source
// document did not carry the value. LegalForm and Sex come from XML
// comments adjacent to their elements, not from element text.
type DocumentRecord struct {
	Designation             string
	LegalForm               string
	Street                  string
	HouseNumber             string
	PostalCode              string
	City                    string
	GivenName               string
	FamilyName              string
	Sex                     string
	BirthDate               string
	BusinessPurpose         string
	RepresentationAuthority string
}

// MergedRecord is the union of a listing record and a document record.
// DocumentsAvailable and History are dropped on merge by design.
type MergedRecord struct {
	Name   string
	Court  string
	Seat   string
	Status string
	DocumentRecord
}

// IdentityKey is the tuple that makes two merged records the same logical
// entity for upsert purposes: registered name plus representative given name.
type IdentityKey struct {
	Name      string
	GivenName string
}

// Identity returns the record's upsert key.
func (r MergedRecord) Identity() IdentityKey {
	return IdentityKey{Name: r.Name, GivenName: r.GivenName}
}
