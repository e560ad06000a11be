package entity

// Player is a seat in a room. The session layer owns the connection; the
// entity only carries identity.
type Player struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color Color  `json:"color"`
}

// Session links a transport session to a player identity and room, so a
// reconnecting client can be re-bound without resetting game state.
type Session struct {
	ID       string `json:"id"`
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Color    Color  `json:"color,omitempty"`
	RoomID   string `json:"room_id,omitempty"`
}
