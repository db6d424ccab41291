// internal/models/priority.go
package models

// Priority is the Odoo crm.lead priority value.
type Priority string

const (
	PriorityLow    Priority = "1"
	PriorityMedium Priority = "2"
	PriorityHigh   Priority = "3"
)

// PriorityBands are inclusive upper bounds on score_total.
type PriorityBands struct {
	LowMax    int
	MediumMax int
}

var DefaultPriorityBands = PriorityBands{LowMax: 33, MediumMax: 66}

// PriorityForScore maps a score onto a tier. Scores outside 0..100 are not
// clamped; they simply land in the lowest or highest band.
func PriorityForScore(score int, bands PriorityBands) Priority {
	switch {
	case score <= bands.LowMax:
		return PriorityLow
	case score <= bands.MediumMax:
		return PriorityMedium
	default:
		return PriorityHigh
	}
}
