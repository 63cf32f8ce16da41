package models

import "strings"

// Jurisdiction is the (state, district) pair scoping an MLA or official.
// The *Key fields hold the normalized form used for equality queries.
type Jurisdiction struct {
	State       string `bson:"state" json:"state"`
	District    string `bson:"district" json:"district"`
	StateKey    string `bson:"stateKey" json:"-"`
	DistrictKey string `bson:"districtKey" json:"-"`
}

// NormalizeKey lower-cases and trims a jurisdiction component.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// NewJurisdiction builds a Jurisdiction with its keys filled in.
func NewJurisdiction(state, district string) Jurisdiction {
	return Jurisdiction{
		State:       strings.TrimSpace(state),
		District:    strings.TrimSpace(district),
		StateKey:    NormalizeKey(state),
		DistrictKey: NormalizeKey(district),
	}
}

// Normalized recomputes the keys from the display values.
func (j Jurisdiction) Normalized() Jurisdiction {
	return NewJurisdiction(j.State, j.District)
}

func (j Jurisdiction) Validate() error {
	if NormalizeKey(j.District) == "" {
		return Validationf("jurisdiction district is required")
	}
	return nil
}

// Matches reports whether two jurisdictions name the same district. An empty
// state on either side matches any state; MLA scopes are refused without one,
// so the wildcard only widens issues filed without a state.
func (j Jurisdiction) Matches(other Jurisdiction) bool {
	a, b := j.Normalized(), other.Normalized()
	if a.DistrictKey == "" || a.DistrictKey != b.DistrictKey {
		return false
	}
	return a.StateKey == "" || b.StateKey == "" || a.StateKey == b.StateKey
}

func (j Jurisdiction) String() string {
	if j.State == "" {
		return j.District
	}
	return j.District + ", " + j.State
}
