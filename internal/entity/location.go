package entity

// LocationKind enumerates the four buckets a piece can occupy.
type LocationKind string

const (
	LocationHome     LocationKind = "home"
	LocationPath     LocationKind = "path"
	LocationStretch  LocationKind = "stretch"
	LocationFinished LocationKind = "finished"
)

// Location is exactly one of: Home, Path(Cell 0..51), HomeStretch(Step 0..4)
// or Finished. Track cells and stretch steps are disjoint coordinate spaces.
type Location struct {
	Kind LocationKind `json:"kind"`
	Cell int          `json:"cell,omitempty"`
	Step int          `json:"step,omitempty"`
}

func HomeLocation() Location {
	return Location{Kind: LocationHome}
}

func PathLocation(cell int) Location {
	return Location{Kind: LocationPath, Cell: cell}
}

func StretchLocation(step int) Location {
	return Location{Kind: LocationStretch, Step: step}
}

func FinishedLocation() Location {
	return Location{Kind: LocationFinished}
}

func (that Location) IsHome() bool     { return that.Kind == LocationHome }
func (that Location) IsPath() bool     { return that.Kind == LocationPath }
func (that Location) IsStretch() bool  { return that.Kind == LocationStretch }
func (that Location) IsFinished() bool { return that.Kind == LocationFinished }
