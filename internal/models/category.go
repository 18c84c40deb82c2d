package models

import "time"

// Category is a bounded bucket of teams whose channels share a parent
// resource. ID is the parent's identifier in the provisioner namespace.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	TeamCount int       `json:"team_count"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *Category) Full(capacity int) bool {
	return c.TeamCount >= capacity
}
