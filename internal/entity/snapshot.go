package entity

// PlayerInfo is the wire view of a seated player.
type PlayerInfo struct {
	Name  string `json:"name"`
	Color Color  `json:"color"`
}

// BoardState is the wire view of one color's pieces, bucketed by location.
// Path and Stretch map piece index to track cell / stretch step.
type BoardState struct {
	Home     []int       `json:"home"`
	Path     map[int]int `json:"path"`
	Stretch  map[int]int `json:"stretch"`
	Finished []int       `json:"finished"`
}

// GameState is the immutable snapshot pushed to clients after every mutation.
// The server is the sole source of truth; clients render this and nothing
// else.
type GameState struct {
	GameID        string                `json:"game_id"`
	Players       map[string]PlayerInfo `json:"players"`
	PlayerOrder   []string              `json:"player_order"`
	CurrentPlayer int                   `json:"current_player"`
	DiceValue     int                   `json:"dice_value"`
	GameStarted   bool                  `json:"game_started"`
	Winner        Color                 `json:"winner,omitempty"`
	Board         map[Color]BoardState  `json:"board"`
	Chat          []ChatMessage         `json:"chat,omitempty"`
}

// Snapshot produces a deep copy of the visible game state. Nothing in the
// result aliases game-owned memory, so readers can hold it concurrently with
// further mutations.
func (that *Game) Snapshot() *GameState {
	players := make(map[string]PlayerInfo, len(that.Players))
	order := make([]string, 0, len(that.Players))
	for _, player := range that.Players {
		players[player.ID] = PlayerInfo{Name: player.Name, Color: player.Color}
		order = append(order, player.ID)
	}

	board := make(map[Color]BoardState, len(that.Board))
	for color, state := range that.Board {
		view := BoardState{
			Home:     []int{},
			Path:     make(map[int]int),
			Stretch:  make(map[int]int),
			Finished: []int{},
		}
		for index, loc := range state.Pieces {
			switch loc.Kind {
			case LocationHome:
				view.Home = append(view.Home, index)
			case LocationPath:
				view.Path[index] = loc.Cell
			case LocationStretch:
				view.Stretch[index] = loc.Step
			case LocationFinished:
				view.Finished = append(view.Finished, index)
			}
		}
		board[color] = view
	}

	chat := make([]ChatMessage, len(that.Chat))
	copy(chat, that.Chat)

	return &GameState{
		GameID:        that.ID,
		Players:       players,
		PlayerOrder:   order,
		CurrentPlayer: that.CurrentPlayer,
		DiceValue:     that.DiceValue,
		GameStarted:   !that.IsWaiting(),
		Winner:        that.Winner,
		Board:         board,
		Chat:          chat,
	}
}
