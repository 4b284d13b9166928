package models

// Team represents a bidding team. PIN is stored and compared as plain text.
type Team struct {
	Name  string `json:"team_name"`
	Color string `json:"team_color"`
	PIN   string `json:"-"`
}
