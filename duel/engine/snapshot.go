package engine

import "sort"

// SeatView is the public face of a seat: no inventory contents, no shell
// knowledge.
type SeatView struct {
	Index      int    `json:"index"`
	Name       string `json:"name"`
	HP         int    `json:"hp"`
	MaxHP      int    `json:"maxHp"`
	Alive      bool   `json:"alive"`
	ItemCount  int    `json:"itemCount"`
	Handcuffed bool   `json:"handcuffed"`
}

// Snapshot is everything a resuming client needs to continue without replay.
// Only the requesting seat's own inventory is included; the queue is exposed
// as a length, never as values.
type Snapshot struct {
	Phase     string     `json:"phase"`
	Round     int        `json:"round"`
	QueueLen  int        `json:"queueLen"`
	Consumed  int        `json:"consumed"` // shells fired or ejected this round
	Turn      int        `json:"turn"`
	Direction int        `json:"direction"`
	SawActive bool       `json:"sawActive"`
	Winner    int        `json:"winner"`
	Seats     []SeatView `json:"seats"`
	Inventory []ItemKind `json:"inventory"`
}

func (m *Match) Snapshot(forSeat int) Snapshot {
	snap := Snapshot{
		Phase:     m.phase.String(),
		Round:     m.round,
		QueueLen:  len(m.queue),
		Consumed:  m.consumed,
		Turn:      m.turn,
		Direction: m.direction,
		SawActive: m.sawActive,
		Winner:    m.winner,
		Seats:     make([]SeatView, len(m.seats)),
	}
	for i, s := range m.seats {
		snap.Seats[i] = SeatView{
			Index:      s.Index,
			Name:       s.Name,
			HP:         s.HP,
			MaxHP:      s.MaxHP,
			Alive:      s.Alive,
			ItemCount:  s.itemTotal(),
			Handcuffed: s.Handcuffed,
		}
	}
	if owner := m.Seat(forSeat); owner != nil {
		inv := make([]ItemKind, 0, owner.itemTotal())
		for kind, count := range owner.Items {
			for i := 0; i < count; i++ {
				inv = append(inv, kind)
			}
		}
		sort.Slice(inv, func(i, j int) bool { return inv[i] < inv[j] })
		snap.Inventory = inv
	}
	return snap
}
