package poll

import "strconv"

// Cursor is the API's opaque progress marker (a timestamp). The empty
// cursor asks for everything still pending.
type Cursor string

// IsZero reports whether no cursor has been received yet.
func (c Cursor) IsZero() bool { return c == "" }

// Advance returns the cursor to use after a poll that reported next.
// An empty next keeps c. When both values are numeric, an older next is
// ignored so the cursor never moves backwards.
func (c Cursor) Advance(next Cursor) Cursor {
	if next.IsZero() {
		return c
	}
	if c.IsZero() {
		return next
	}
	cur, err1 := strconv.ParseFloat(string(c), 64)
	nxt, err2 := strconv.ParseFloat(string(next), 64)
	if err1 == nil && err2 == nil && nxt < cur {
		return c
	}
	return next
}
