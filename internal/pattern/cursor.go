package pattern

// Cursor is the edit position on the grid.
type Cursor struct {
	Track int
	Step  int
}

// Move shifts the cursor by (dx steps, dy tracks), wrapping around both axes.
func (c *Cursor) Move(dx, dy int, p Pattern) {
	if p.Len() > 0 {
		c.Step = wrap(c.Step+dx, p.Len())
	}
	if p.NumTracks() > 0 {
		c.Track = wrap(c.Track+dy, p.NumTracks())
	}
}

func wrap(v, n int) int {
	v %= n
	if v < 0 {
		v += n
	}
	return v
}
