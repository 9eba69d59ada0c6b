package models

// Group represents an ordered, unique set of members who share expenses.
// Membership management (invitations, removal) is owned by the caller; the
// ledger core only reads the member set.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group (e.g., "Roommates").
	Name string

	// Members is the ordered list of member ids in this group.
	// Order is stable: it is the order members were added.
	Members []string

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64
}

// HasMember reports whether id is in the group's member set.
func (g *Group) HasMember(id string) bool {
	for _, m := range g.Members {
		if m == id {
			return true
		}
	}
	return false
}
