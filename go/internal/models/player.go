package models

// PlayerStatus defines where a player is in the auction lifecycle.
type PlayerStatus string

const (
	PlayerStatusAvailable PlayerStatus = "AVAILABLE"
	PlayerStatusInAuction PlayerStatus = "IN_AUCTION"
	PlayerStatusSold      PlayerStatus = "SOLD"
	PlayerStatusUnsold    PlayerStatus = "UNSOLD"
)

// Player represents one row of the Players table
type Player struct {
	PlayerID   string       `json:"player_id"`
	PlayerName string       `json:"player_name"`
	Pool       Pool         `json:"pool"`
	Role       string       `json:"role"`
	BasePrice  int          `json:"base_price"`
	Status     PlayerStatus `json:"status"`

	// Post-sale fields, empty until the player is closed
	SoldTo    string `json:"sold_to,omitempty"`
	SoldPrice int    `json:"sold_price,omitempty"`
	Round     Pool   `json:"round,omitempty"`
}

// Eligible reports whether the player can be drawn while pool is locked.
func (p Player) Eligible(pool Pool) bool {
	return p.Status == PlayerStatusAvailable && p.Pool == pool
}
