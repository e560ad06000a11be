package apperror

import "errors"

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room is full")
	ErrColorTaken     = errors.New("color is already taken")
	ErrPlayerNotFound = errors.New("player not found in room")

	ErrGameNotStarted   = errors.New("game is not started")
	ErrGameFinished     = errors.New("game is already finished")
	ErrGameAlreadyBegun = errors.New("game has already started")
	ErrNotEnoughPlayers = errors.New("need at least 2 players to start")
	ErrNotHost          = errors.New("only the host can start the game")

	ErrNotYourTurn   = errors.New("it's not your turn")
	ErrAlreadyRolled = errors.New("dice already rolled, make a move or pass")
	ErrRollRequired  = errors.New("roll the dice first")
	ErrMustUseSix    = errors.New("a rolled 6 must be used to move a piece")
	ErrIllegalMove   = errors.New("illegal move")
)
