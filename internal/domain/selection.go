package domain

// Bounds is the on-screen rectangle of a selection, in surface pixels.
type Bounds struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Selection is the latest text the reader selected on the surface.
type Selection struct {
	Text        string `json:"text"`
	LocationRef string `json:"location_ref"`
	Bounds      Bounds `json:"bounds"`
}

// Empty reports whether there is nothing selected.
func (s Selection) Empty() bool {
	return s.Text == "" || s.LocationRef == ""
}
