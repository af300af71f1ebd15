// Package engine holds the turn-based duel state machine. It performs no I/O:
// operations validate, mutate, and return the deltas the caller broadcasts.
package engine

import "math/rand"

// Phase is the explicit three-level state of a match.
type Phase int

const (
	PhaseAwaitingAction Phase = iota
	PhaseResolvingShot
	PhaseRoundTransition
	PhaseMatchEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingAction:
		return "awaiting_action"
	case PhaseResolvingShot:
		return "resolving_shot"
	case PhaseRoundTransition:
		return "round_transition"
	case PhaseMatchEnded:
		return "match_ended"
	}
	return "unknown"
}

// Config is the game-design tuning table. Any table keeping at least one live
// and one blank shell per deal satisfies the match invariants.
type Config struct {
	MaxHP        int
	ItemCapacity int
	Rounds       []RoundSpec
	Replenish    []int // items granted per seat at each round start
}

func DefaultConfig() Config {
	return Config{
		MaxHP:        4,
		ItemCapacity: 8,
		Rounds: []RoundSpec{
			{BaseTotal: 4, MinLive: 1, MaxLive: 2},
			{BaseTotal: 6, MinLive: 2, MaxLive: 3},
			{BaseTotal: 8, MinLive: 3, MaxLive: 5},
		},
		Replenish: []int{2, 2, 3},
	}
}

func (c Config) replenishCount(round int) int {
	if len(c.Replenish) == 0 {
		return 0
	}
	if round > len(c.Replenish) {
		round = len(c.Replenish)
	}
	if round < 1 {
		round = 1
	}
	return c.Replenish[round-1]
}

// Seat is one player slot inside a match. Connection state lives with the
// room, not here.
type Seat struct {
	Index int
	Name  string
	HP    int
	MaxHP int
	Items map[ItemKind]int
	Alive bool

	Handcuffed bool // skip the next turn, consumed on rotation

	Shots        int
	ItemUses     int
	EliminatedAt int // 1-based elimination order, 0 while alive
}

func (s *Seat) itemTotal() int {
	n := 0
	for _, c := range s.Items {
		n += c
	}
	return n
}

// Match owns the shell queue, turn pointer and pending effects for one duel.
// All methods must be called from a single goroutine.
type Match struct {
	cfg   Config
	rng   *rand.Rand
	seats []*Seat

	round    int
	queue    []Shell
	consumed int

	turn      int
	direction int // +1 or -1, flipped by the turn reverser
	sawActive bool

	phase       Phase
	winner      int
	elimCounter int
}

// NewMatch seats the named players. Match play begins with Start.
func NewMatch(cfg Config, names []string, rng *rand.Rand) *Match {
	seats := make([]*Seat, len(names))
	for i, name := range names {
		seats[i] = &Seat{
			Index: i,
			Name:  name,
			HP:    cfg.MaxHP,
			MaxHP: cfg.MaxHP,
			Items: make(map[ItemKind]int),
			Alive: true,
		}
	}
	return &Match{
		cfg:       cfg,
		rng:       rng,
		seats:     seats,
		turn:      0,
		direction: 1,
		winner:    -1,
		phase:     PhaseRoundTransition,
	}
}

// Start deals round one and opens the first turn.
func (m *Match) Start() []Event {
	events := m.startRound()
	m.phase = PhaseAwaitingAction
	events = append(events, TurnChanged{Seat: m.turn})
	return events
}

func (m *Match) Phase() Phase   { return m.phase }
func (m *Match) Round() int     { return m.round }
func (m *Match) Turn() int      { return m.turn }
func (m *Match) Winner() int    { return m.winner }
func (m *Match) QueueLen() int  { return len(m.queue) }
func (m *Match) Seats() []*Seat { return m.seats }
func (m *Match) Seat(i int) *Seat {
	if i < 0 || i >= len(m.seats) {
		return nil
	}
	return m.seats[i]
}

func (m *Match) aliveCount() int {
	n := 0
	for _, s := range m.seats {
		if s.Alive {
			n++
		}
	}
	return n
}

// startRound refills the queue, replenishes inventories and decays pending
// multi-round effects. Rotation order is preserved across rounds.
func (m *Match) startRound() []Event {
	m.round++
	m.queue = generateQueue(m.cfg, m.round, len(m.seats), m.rng)
	m.consumed = 0

	// Multi-round effects decay at the boundary.
	m.sawActive = false
	m.direction = 1
	for _, s := range m.seats {
		s.Handcuffed = false
	}

	live, blank := countShells(m.queue)
	events := []Event{RoundStarted{Round: m.round, Live: live, Blank: blank, QueueLen: len(m.queue)}}

	grant := m.cfg.replenishCount(m.round)
	for _, s := range m.seats {
		if !s.Alive || grant == 0 {
			continue
		}
		granted := make([]ItemKind, 0, grant)
		for i := 0; i < grant && s.itemTotal() < m.cfg.ItemCapacity; i++ {
			kind := allItems[m.rng.Intn(len(allItems))]
			s.Items[kind]++
			granted = append(granted, kind)
		}
		if len(granted) > 0 {
			events = append(events, ItemsGranted{Seat: s.Index, Items: granted})
		}
	}
	return events
}

// Shoot pops the chamber against the target seat. A blank self-shot keeps the
// turn; everything else rotates to the next alive seat.
func (m *Match) Shoot(seat, target int) ([]Event, error) {
	if m.phase == PhaseMatchEnded {
		return nil, ErrMatchOver
	}
	if m.phase != PhaseAwaitingAction {
		return nil, ErrNotAwaiting
	}
	shooter := m.Seat(seat)
	if shooter == nil {
		return nil, ErrSeatInvalid
	}
	if !shooter.Alive {
		return nil, ErrSeatEliminated
	}
	if seat != m.turn {
		return nil, ErrNotYourTurn
	}
	victim := m.Seat(target)
	if victim == nil || !victim.Alive {
		return nil, ErrInvalidTarget
	}

	m.phase = PhaseResolvingShot
	shell, err := m.popShell()
	if err != nil {
		return nil, err
	}
	shooter.Shots++

	damage := 0
	if shell == ShellLive {
		damage = 1
		if m.sawActive {
			damage = 2
		}
	}
	m.sawActive = false // the multiplier lasts until the next shot, hit or miss

	events := []Event{ShotResolved{Seat: seat, Target: target, Shell: shell, Damage: damage}}
	if damage > 0 {
		events = append(events, m.applyDamage(victim, damage, "shot")...)
	}

	if done := m.checkMatchEnd(&events); done {
		return events, nil
	}

	retained := shell == ShellBlank && target == seat
	if len(m.queue) == 0 {
		m.phase = PhaseRoundTransition
		if !retained {
			events = append(events, m.advanceTurn()...)
		}
		events = append(events, m.startRound()...)
		m.phase = PhaseAwaitingAction
		events = append(events, TurnChanged{Seat: m.turn, Retained: retained})
		return events, nil
	}

	m.phase = PhaseAwaitingAction
	if retained {
		events = append(events, TurnChanged{Seat: m.turn, Retained: true})
	} else {
		events = append(events, m.advanceTurn()...)
		events = append(events, TurnChanged{Seat: m.turn})
	}
	return events, nil
}

// applyDamage lowers HP and runs the elimination check. Elimination is
// irreversible within the match.
func (m *Match) applyDamage(victim *Seat, damage int, cause string) []Event {
	victim.HP -= damage
	if victim.HP < 0 {
		victim.HP = 0
	}
	var events []Event
	if victim.HP == 0 && victim.Alive {
		events = append(events, m.eliminate(victim, cause)...)
	}
	return events
}

func (m *Match) eliminate(seat *Seat, reason string) []Event {
	seat.Alive = false
	m.elimCounter++
	seat.EliminatedAt = m.elimCounter
	return []Event{SeatEliminated{Seat: seat.Index, Reason: reason}}
}

// checkMatchEnd flips to the terminal phase when one seat remains.
func (m *Match) checkMatchEnd(events *[]Event) bool {
	if m.aliveCount() > 1 {
		return false
	}
	for _, s := range m.seats {
		if s.Alive {
			m.winner = s.Index
			break
		}
	}
	m.phase = PhaseMatchEnded
	*events = append(*events, MatchEnded{Winner: m.winner})
	return true
}

// advanceTurn walks the rotation direction to the next alive seat, consuming
// handcuff skips along the way.
func (m *Match) advanceTurn() []Event {
	var events []Event
	n := len(m.seats)
	for hops := 0; hops < 2*n; hops++ {
		m.turn = (m.turn + m.direction + n) % n
		next := m.seats[m.turn]
		if !next.Alive {
			continue
		}
		if next.Handcuffed {
			next.Handcuffed = false
			events = append(events, TurnSkipped{Seat: next.Index})
			continue
		}
		return events
	}
	return events // unreachable while >=1 seat is alive
}

// Forfeit eliminates a seat outside normal damage flow (manual leave or an
// expired reconnect grace period). If the seat held the turn, play moves on.
func (m *Match) Forfeit(seat int) []Event {
	s := m.Seat(seat)
	if s == nil || !s.Alive || m.phase == PhaseMatchEnded {
		return nil
	}
	events := m.eliminate(s, "forfeit")
	if done := m.checkMatchEnd(&events); done {
		return events
	}
	if m.turn == seat && m.phase == PhaseAwaitingAction {
		events = append(events, m.advanceTurn()...)
		events = append(events, TurnChanged{Seat: m.turn})
	}
	return events
}

// Standing is one row of the final result record.
type Standing struct {
	Seat         int    `json:"seat"`
	Name         string `json:"name"`
	Place        int    `json:"place"`
	HP           int    `json:"hp"`
	EliminatedAt int    `json:"eliminatedAt"`
	Shots        int    `json:"shots"`
	ItemUses     int    `json:"itemUses"`
}

// Standings orders seats winner first, then by reverse elimination order.
func (m *Match) Standings() []Standing {
	out := make([]Standing, 0, len(m.seats))
	add := func(s *Seat, place int) {
		out = append(out, Standing{
			Seat:         s.Index,
			Name:         s.Name,
			Place:        place,
			HP:           s.HP,
			EliminatedAt: s.EliminatedAt,
			Shots:        s.Shots,
			ItemUses:     s.ItemUses,
		})
	}
	place := 1
	for _, s := range m.seats {
		if s.Alive {
			add(s, place)
			place++
		}
	}
	// Last eliminated finished highest among the fallen.
	for order := m.elimCounter; order >= 1; order-- {
		for _, s := range m.seats {
			if s.EliminatedAt == order {
				add(s, place)
				place++
			}
		}
	}
	return out
}
