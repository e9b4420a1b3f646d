// Package reports provides the numbered inspection report service.
package reports

import (
	"sort"
)

// Family is a kind of inspection report. Each family has its own table and
// its own numbering namespace keyed by Prefix.
type Family struct {
	Prefix string
	Name   string
	Table  string
}

// Known report families.
var (
	NDTSummary            = Family{Prefix: "NDT", Name: "NDT summary inspection", Table: "rep_ndt_summary"}
	LiquidPenetrant       = Family{Prefix: "PT", Name: "Liquid penetrant test", Table: "rep_liquid_penetrant"}
	WeldingAudit          = Family{Prefix: "WLD", Name: "Welding audit", Table: "rep_welding_audit"}
	EngineeringInspection = Family{Prefix: "ENG", Name: "Engineering inspection", Table: "rep_engineering_inspection"}
	LiftInspection        = Family{Prefix: "LIFT", Name: "Lift inspection", Table: "rep_lift_inspection"}
)

var families = map[string]Family{
	NDTSummary.Prefix:            NDTSummary,
	LiquidPenetrant.Prefix:       LiquidPenetrant,
	WeldingAudit.Prefix:          WeldingAudit,
	EngineeringInspection.Prefix: EngineeringInspection,
	LiftInspection.Prefix:        LiftInspection,
}

// Families returns all known families ordered by prefix.
func Families() []Family {
	out := make([]Family, 0, len(families))
	for _, f := range families {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Prefix < out[j].Prefix })
	return out
}

// FamilyByPrefix looks up a family by its numbering prefix.
func FamilyByPrefix(prefix string) (Family, bool) {
	f, ok := families[prefix]
	return f, ok
}
