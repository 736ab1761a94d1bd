package model

import "time"

// Lineup is a channel lineup (cable, antenna, satellite) known to Schedules Direct.
type Lineup struct {
	ID        string
	Name      string
	Location  string
	Transport string
	UpdatedAt time.Time
}

// LineupFromRecord maps an upstream lineup object onto a Lineup. It returns
// false when the record carries no lineup identifier.
func LineupFromRecord(r Record) (Lineup, bool) {
	id := r.String("lineup")
	if id == "" {
		id = r.String("lineupID")
	}
	if id == "" {
		return Lineup{}, false
	}
	return Lineup{
		ID:        id,
		Name:      r.String("name"),
		Location:  r.String("location"),
		Transport: r.String("transport"),
	}, true
}
