package gameproc

// GameTick is the opaque time value used for in-game deadlines (spec.md
// §3, §4.6). The type carries no unit of its own; internal/gamesession
// fills it with unix milliseconds (see currentTick there) and compares it
// against deadlines reported by a subprocess's State response.
type GameTick int64

func (t GameTick) Add(other GameTick) GameTick { return t + other }
func (t GameTick) Sub(other GameTick) GameTick { return t - other }
func (t GameTick) Mul(n int64) GameTick        { return GameTick(int64(t) * n) }

func (t *GameTick) AddAssign(other GameTick) { *t = *t + other }
func (t *GameTick) SubAssign(other GameTick) { *t = *t - other }
func (t *GameTick) MulAssign(n int64)        { *t = GameTick(int64(*t) * n) }

// Before reports whether t is strictly earlier than other.
func (t GameTick) Before(other GameTick) bool { return t < other }

// After reports whether t is strictly later than other.
func (t GameTick) After(other GameTick) bool { return t > other }
