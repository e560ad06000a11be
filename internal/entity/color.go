package entity

// Color identifies one of the four seats on the board.
type Color string

const (
	ColorRed    Color = "red"
	ColorBlue   Color = "blue"
	ColorGreen  Color = "green"
	ColorYellow Color = "yellow"
)

// AllColors lists seats in board order. Start cells follow this order around
// the track.
var AllColors = []Color{ColorRed, ColorBlue, ColorGreen, ColorYellow}

const (
	// TrackCells is the length of the shared circular path.
	TrackCells = 52

	// TrackDistance is the number of track cells a piece travels from its
	// start cell to the entrance of its home stretch (traveled offsets 0..50).
	TrackDistance = 51

	// StretchCells is the length of each color's private home stretch.
	StretchCells = 5

	// FinishDistance is the total traveled distance that lands a piece on
	// Finished: 51 track cells plus 5 stretch cells.
	FinishDistance = TrackDistance + StretchCells

	// PiecesPerColor is fixed: every color always owns exactly 4 pieces.
	PiecesPerColor = 4

	// MaxPlayers caps seats per room.
	MaxPlayers = 4

	// MinPlayers is the minimum required to start a game.
	MinPlayers = 2
)

var startCells = map[Color]int{
	ColorRed:    0,
	ColorBlue:   13,
	ColorGreen:  26,
	ColorYellow: 39,
}

// safeCells are the 4 start cells plus the 4 star cells; no capture can
// happen on them.
var safeCells = map[int]bool{
	0: true, 8: true, 13: true, 21: true, 26: true, 34: true, 39: true, 47: true,
}

func (that Color) Valid() bool {
	_, ok := startCells[that]
	return ok
}

// StartCell returns the track cell where the color's pieces enter play.
func (that Color) StartCell() int {
	return startCells[that]
}

// IsSafeCell reports whether the given track cell is immune to captures.
func IsSafeCell(cell int) bool {
	return safeCells[cell]
}
