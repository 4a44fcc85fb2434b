package entities

import "time"

// RosterEntry is one voter in a question's immutable roster snapshot, taken
// from the ownership registry when the question is created. Later roster
// edits in the registry never retroactively change a tally.
type RosterEntry struct {
	QuestionID      string
	VoterID         string
	ApartmentNumber string
	DisplayName     string
	// Mills are thousandths of building ownership, the unit of voting weight.
	Mills int
	// IsPresent is the physical attendance flag. Informational only; a
	// mailed-in pre-vote counts toward quorum regardless.
	IsPresent bool
	// ProxyForVoterID names the absent voter this entry holds a delegation
	// for. The delegator's mills are added to this voter's ballot weight for
	// this question only, and only while the delegator has no own ballot.
	ProxyForVoterID string
	SnapshotAt      time.Time
}

// Roster is a question's voter snapshot indexed for tally computation.
type Roster struct {
	entries []RosterEntry
	byVoter map[string]RosterEntry
}

func NewRoster(entries []RosterEntry) Roster {
	byVoter := make(map[string]RosterEntry, len(entries))
	for _, entry := range entries {
		byVoter[entry.VoterID] = entry
	}
	return Roster{entries: entries, byVoter: byVoter}
}

func (r Roster) Entries() []RosterEntry {
	return r.entries
}

func (r Roster) Lookup(voterID string) (RosterEntry, bool) {
	entry, ok := r.byVoter[voterID]
	return entry, ok
}

func (r Roster) Size() int {
	return len(r.entries)
}

// TotalMills sums the base mills of every voter in the snapshot. It must
// equal the declared building total; the mismatch is an integrity error
// surfaced at question creation, never silently corrected.
func (r Roster) TotalMills() int {
	total := 0
	for _, entry := range r.entries {
		total += entry.Mills
	}
	return total
}
