package engine

// Events describe state deltas produced by match operations. The room layer
// translates them into outbound messages; private events carry the seat index
// they may be shown to.

type Event interface {
	isEvent()
}

// RoundStarted announces a fresh shell queue. Live/Blank counts are public at
// deal time, the order is not.
type RoundStarted struct {
	Round    int `json:"round"`
	Live     int `json:"live"`
	Blank    int `json:"blank"`
	QueueLen int `json:"queueLen"`
}

// TurnChanged moves the action to Seat. Retained is set when a self-shot
// blank keeps the shooter on turn.
type TurnChanged struct {
	Seat     int  `json:"seat"`
	Retained bool `json:"retained"`
}

// TurnSkipped reports a handcuffed seat losing its turn.
type TurnSkipped struct {
	Seat int `json:"seat"`
}

// ShotResolved is the outcome of a shoot action.
type ShotResolved struct {
	Seat   int   `json:"seat"`
	Target int   `json:"target"`
	Shell  Shell `json:"shell"`
	Damage int   `json:"damage"`
}

// ItemUsed is the public record of an item resolution.
type ItemUsed struct {
	Seat    int      `json:"seat"`
	Target  int      `json:"target"` // -1 when untargeted
	Item    ItemKind `json:"item"`
	Outcome string   `json:"outcome"`
}

// ShellRevealed discloses a queue position. PrivateTo limits delivery to one
// seat; -1 means everyone (e.g. a beer-ejected shell).
type ShellRevealed struct {
	Pos       int   `json:"pos"`
	Shell     Shell `json:"shell"`
	PrivateTo int   `json:"-"`
}

// HPChanged covers heals and non-shot damage (medicine backfire).
type HPChanged struct {
	Seat  int `json:"seat"`
	Delta int `json:"delta"`
	HP    int `json:"hp"`
}

// ItemsGranted is the per-seat replenishment at a round boundary, delivered
// privately.
type ItemsGranted struct {
	Seat  int        `json:"seat"`
	Items []ItemKind `json:"items"`
}

// SeatEliminated removes a seat from rotation for the rest of the match.
type SeatEliminated struct {
	Seat   int    `json:"seat"`
	Reason string `json:"reason"` // "shot", "item", "forfeit"
}

// MatchEnded is terminal; emitted at most once per match.
type MatchEnded struct {
	Winner int `json:"winner"`
}

func (RoundStarted) isEvent()   {}
func (TurnChanged) isEvent()    {}
func (TurnSkipped) isEvent()    {}
func (ShotResolved) isEvent()   {}
func (ItemUsed) isEvent()       {}
func (ShellRevealed) isEvent()  {}
func (HPChanged) isEvent()      {}
func (ItemsGranted) isEvent()   {}
func (SeatEliminated) isEvent() {}
func (MatchEnded) isEvent()     {}
