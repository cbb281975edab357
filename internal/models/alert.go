package models

import "time"

type Category string

const (
	CategoryFlood               Category = "flood"
	CategoryMassDelete          Category = "mass_delete"
	CategoryPrivilegeEscalation Category = "privilege_escalation"
	CategoryContentPolicy       Category = "content_policy"
)

func (c Category) Title() string {
	switch c {
	case CategoryFlood:
		return "Spam"
	case CategoryMassDelete:
		return "Mass Channel Delete"
	case CategoryPrivilegeEscalation:
		return "Dangerous Permission Grant"
	case CategoryContentPolicy:
		return "Content Policy"
	default:
		return string(c)
	}
}

// Breach is a detector's decision that an actor crossed a threshold.
type Breach struct {
	GuildID   string
	ActorID   string
	Category  Category
	Count     int
	Reason    string
	Timestamp time.Time
	// Role is set for privilege escalation so the change can be reverted.
	Role *RoleRevert
}

type RoleRevert struct {
	RoleID      string
	Permissions int64
}
