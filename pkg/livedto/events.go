package livedto

// MoveEvent is the payload published on a game's realtime topic after a
// transition commits. Delivery is best effort; subscribers resynchronize by
// re-fetching the game when they suspect a gap.
type MoveEvent struct {
	GameID    string `json:"game_id"`
	FEN       string `json:"fen"`
	MovedBy   string `json:"moved_by"`
	Color     string `json:"color"`
	SAN       string `json:"san,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	State     string `json:"state"`
	Seq       int    `json:"seq"`
}
