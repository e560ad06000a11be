package websocket

import (
	"bufio"
	"encoding/json"
	"sync"

	"github.com/playludo/ludo-backend/internal/entity"
)

// frame represents a WebSocket frame and its metadata.
type frame struct {
	isFin   bool
	opCode  byte
	length  uint64
	payload []byte
}

// connection is one hijacked client stream. Reads happen on the connection's
// own goroutine only; writes also arrive from room broadcasts on other
// goroutines, so every write holds mu to keep frames intact.
type connection struct {
	mu    sync.Mutex
	bufrw *bufio.ReadWriter
}

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client->server actions.
const (
	ActionCreateGame  = "create_game"
	ActionJoinGame    = "join_game"
	ActionRejoinGame  = "rejoin_game"
	ActionStartGame   = "start_game"
	ActionRollDice    = "roll_dice"
	ActionMovePiece   = "move_piece"
	ActionPassTurn    = "pass_turn"
	ActionChatMessage = "chat_message"
)

// Server->client events.
const (
	EventGameCreated   = "game_created"
	EventGameJoined    = "game_joined"
	EventGameRejoined  = "game_rejoined"
	EventPlayerJoined  = "player_joined"
	EventPlayerLeft    = "player_left"
	EventGameStarted   = "game_started"
	EventDiceRolled    = "dice_rolled"
	EventPieceMoved    = "piece_moved"
	EventTurnChanged   = "turn_changed"
	EventChatMessage   = "chat_message"
	EventError         = "error"
)

// RequestPayload is the union of every client intent payload; handlers pick
// the fields their action needs.
type RequestPayload struct {
	GameID     string       `json:"game_id,omitempty"`
	PlayerName string       `json:"player_name,omitempty"`
	Color      entity.Color `json:"color,omitempty"`
	Piece      *int         `json:"piece,omitempty"`
	From       string       `json:"from,omitempty"`
	Message    string       `json:"message,omitempty"`
}

// ResponsePayload is the union of every server event payload.
type ResponsePayload struct {
	GameID     string            `json:"game_id,omitempty"`
	PlayerID   string            `json:"player_id,omitempty"`
	PlayerName string            `json:"player_name,omitempty"`
	Color      entity.Color      `json:"color,omitempty"`
	Piece      *int              `json:"piece,omitempty"`
	DiceValue  int               `json:"dice_value,omitempty"`
	Message    string            `json:"message,omitempty"`
	GameState  *entity.GameState `json:"game_state,omitempty"`
}

// session is the per-connection identity: the cookie-derived session id plus
// the player and room the connection is bound to, once known.
type session struct {
	id       string
	playerID string
	roomID   string
}
