package iface

// Cursor is the replay position of an interface over its receive log.
type Cursor struct {
	Rx    int    // current position, in [0, Count]
	Last  int    // position before the most recent move
	Count int    // committed frames
	Size  uint32 // committed payload bytes
}

// Seek moves the cursor to pos clamped to [0, Count] and remembers the
// previous position.
func (i *Interface) Seek(pos int) int {
	if pos < 0 {
		pos = 0
	} else if pos > i.cursor.Count {
		pos = i.cursor.Count
	}
	i.cursor.Last = i.cursor.Rx
	i.cursor.Rx = pos
	return pos
}

// Move shifts the cursor by delta.
func (i *Interface) Move(delta int) int { return i.Seek(i.cursor.Rx + delta) }

// Head moves to the first frame.
func (i *Interface) Head() int { return i.Seek(0) }

// Tail moves past the last frame.
func (i *Interface) Tail() int { return i.Seek(i.cursor.Count) }

// Back returns to the position held before the last move.
func (i *Interface) Back() int { return i.Seek(i.cursor.Last) }

// Peek returns the frame under the cursor without moving it.
func (i *Interface) Peek() ([]byte, error) { return i.log.Read(i.cursor.Rx) }
