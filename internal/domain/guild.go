package domain

import "time"

// GuildSettings holds per-guild configuration consumed by the workflow,
// the celebration engine and the scheduler.
type GuildSettings struct {
	GuildID          string
	Enabled          bool
	CelebrationChan  *string
	CelebrationRole  *string
	TicketChannel    *string
	StaffIDs         []string
	MentionSubjects  bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasStaff reports whether the actor is listed as staff for the guild.
func (g *GuildSettings) HasStaff(actorID string) bool {
	for _, id := range g.StaffIDs {
		if id == actorID {
			return true
		}
	}
	return false
}
