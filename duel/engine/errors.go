package engine

// Error is a rejection with a stable reason code. Rejected actions never
// mutate match state.
type Error struct {
	Code string
	Msg  string
}

func (e Error) Error() string {
	return e.Msg
}

func newErr(code, msg string) Error {
	return Error{Code: code, Msg: msg}
}

var (
	ErrMatchOver      = newErr("match_over", "Match already ended.")
	ErrNotAwaiting    = newErr("not_awaiting_action", "No action expected right now.")
	ErrNotYourTurn    = newErr("not_your_turn", "Not your turn.")
	ErrSeatInvalid    = newErr("seat_invalid", "Unknown seat.")
	ErrSeatEliminated = newErr("seat_eliminated", "Seat already eliminated.")
	ErrInvalidTarget  = newErr("invalid_target", "Invalid target seat.")
	ErrItemUnknown    = newErr("item_unknown", "Unknown item kind.")
	ErrItemMissing    = newErr("item_missing", "Item not in inventory.")
	ErrItemNoEffect   = newErr("item_no_effect", "Item would have no effect.")
	ErrQueueCorrupt   = newErr("queue_corrupt", "Shell queue empty outside a round boundary.")
)

// Reason extracts the stable code from an engine error, falling back to
// "internal" for anything unexpected.
func Reason(err error) string {
	if e, ok := err.(Error); ok {
		return e.Code
	}
	return "internal"
}
