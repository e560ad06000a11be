package entity

// ChatLogLimit caps how much chat history a room keeps for rejoining clients.
// Delivery to connected members is unaffected by the cap.
const ChatLogLimit = 200

type ChatMessage struct {
	PlayerName string `json:"player_name"`
	Message    string `json:"message"`
}
