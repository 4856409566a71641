package lifecycle

import "sync/atomic"

// Tracker hands out generation tokens. Starting a new generation abandons
// whatever was running before.
type Tracker struct {
	gen atomic.Uint64
}

// Begin abandons the previous token and returns a fresh one.
func (t *Tracker) Begin() Token {
	return Token{tracker: t, gen: t.gen.Add(1)}
}

// Abandon invalidates the current token without starting a new one.
func (t *Tracker) Abandon() {
	t.gen.Add(1)
}

// Token identifies one generation. The zero Token is always active.
type Token struct {
	tracker *Tracker
	gen     uint64
}

// Active reports whether no newer generation has started since the token was issued.
func (tk Token) Active() bool {
	return tk.tracker == nil || tk.tracker.gen.Load() == tk.gen
}
