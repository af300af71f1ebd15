package engine

import "fmt"

// ItemKind is the closed set of consumables. New items are added here and in
// the resolver table, nowhere else.
type ItemKind string

const (
	ItemMagnifyingGlass ItemKind = "magnifying_glass"
	ItemBeer            ItemKind = "beer"
	ItemCigarette       ItemKind = "cigarette"
	ItemHandcuffs       ItemKind = "handcuffs"
	ItemHandsaw         ItemKind = "handsaw"
	ItemPhone           ItemKind = "phone"
	ItemInverter        ItemKind = "inverter"
	ItemAdrenaline      ItemKind = "adrenaline"
	ItemMedicine        ItemKind = "medicine"
	ItemTurnReverser    ItemKind = "turn_reverser"
)

var allItems = []ItemKind{
	ItemMagnifyingGlass, ItemBeer, ItemCigarette, ItemHandcuffs, ItemHandsaw,
	ItemPhone, ItemInverter, ItemAdrenaline, ItemMedicine, ItemTurnReverser,
}

func ValidItem(kind ItemKind) bool {
	_, ok := itemTable[kind]
	return ok
}

type itemSpec struct {
	targeted bool
	// validate runs before the item is consumed; a returned error rejects the
	// action with zero mutation.
	validate func(m *Match, actor, target *Seat) error
	resolve  func(m *Match, actor, target *Seat) []Event
}

var itemTable = map[ItemKind]itemSpec{
	ItemMagnifyingGlass: {resolve: resolveMagnifyingGlass},
	ItemBeer:            {resolve: resolveBeer},
	ItemCigarette:       {validate: validateCigarette, resolve: resolveCigarette},
	ItemHandcuffs:       {targeted: true, validate: validateHandcuffs, resolve: resolveHandcuffs},
	ItemHandsaw:         {validate: validateHandsaw, resolve: resolveHandsaw},
	ItemPhone:           {resolve: resolvePhone},
	ItemInverter:        {resolve: resolveInverter},
	ItemAdrenaline:      {targeted: true, validate: validateAdrenaline, resolve: resolveAdrenaline},
	ItemMedicine:        {resolve: resolveMedicine},
	ItemTurnReverser:    {resolve: resolveTurnReverser},
}

// UseItem consumes one unit and resolves its effect. Item use is a free
// action: the turn pointer only moves when the effect itself forces it.
func (m *Match) UseItem(seat int, kind ItemKind, target int) ([]Event, error) {
	if m.phase == PhaseMatchEnded {
		return nil, ErrMatchOver
	}
	if m.phase != PhaseAwaitingAction {
		return nil, ErrNotAwaiting
	}
	actor := m.Seat(seat)
	if actor == nil {
		return nil, ErrSeatInvalid
	}
	if !actor.Alive {
		return nil, ErrSeatEliminated
	}
	if seat != m.turn {
		return nil, ErrNotYourTurn
	}
	spec, ok := itemTable[kind]
	if !ok {
		return nil, ErrItemUnknown
	}
	if actor.Items[kind] == 0 {
		return nil, ErrItemMissing
	}

	var victim *Seat
	if spec.targeted {
		victim = m.Seat(target)
		if victim == nil || !victim.Alive || victim == actor {
			return nil, ErrInvalidTarget
		}
	}
	if spec.validate != nil {
		if err := spec.validate(m, actor, victim); err != nil {
			return nil, err
		}
	}

	actor.Items[kind]--
	if actor.Items[kind] == 0 {
		delete(actor.Items, kind)
	}
	actor.ItemUses++

	events := spec.resolve(m, actor, victim)

	if done := m.checkMatchEnd(&events); done {
		return events, nil
	}

	// Medicine can eliminate the acting seat mid-turn.
	if !actor.Alive {
		events = append(events, m.advanceTurn()...)
		events = append(events, TurnChanged{Seat: m.turn})
		return events, nil
	}

	// A beer draining the last shell is a round boundary like any other.
	if len(m.queue) == 0 {
		m.phase = PhaseRoundTransition
		events = append(events, m.startRound()...)
		m.phase = PhaseAwaitingAction
	}
	return events, nil
}

func resolveMagnifyingGlass(m *Match, actor, _ *Seat) []Event {
	shell, _ := m.peek(0)
	return []Event{
		ItemUsed{Seat: actor.Index, Target: -1, Item: ItemMagnifyingGlass, Outcome: "peeked_chamber"},
		ShellRevealed{Pos: 0, Shell: shell, PrivateTo: actor.Index},
	}
}

func resolveBeer(m *Match, actor, _ *Seat) []Event {
	shell, err := m.popShell()
	if err != nil {
		// Queue emptiness is re-established after every consumption, so the
		// chamber is never empty here.
		return []Event{ItemUsed{Seat: actor.Index, Target: -1, Item: ItemBeer, Outcome: "misfire"}}
	}
	return []Event{
		ItemUsed{Seat: actor.Index, Target: -1, Item: ItemBeer, Outcome: "ejected_" + shell.String()},
		ShellRevealed{Pos: 0, Shell: shell, PrivateTo: -1},
	}
}

func validateCigarette(_ *Match, actor, _ *Seat) error {
	if actor.HP >= actor.MaxHP {
		return ErrItemNoEffect
	}
	return nil
}

func resolveCigarette(_ *Match, actor, _ *Seat) []Event {
	actor.HP++
	return []Event{
		ItemUsed{Seat: actor.Index, Target: -1, Item: ItemCigarette, Outcome: "healed"},
		HPChanged{Seat: actor.Index, Delta: 1, HP: actor.HP},
	}
}

func validateHandcuffs(_ *Match, _, target *Seat) error {
	if target.Handcuffed {
		return ErrInvalidTarget
	}
	return nil
}

func resolveHandcuffs(_ *Match, actor, target *Seat) []Event {
	target.Handcuffed = true
	return []Event{ItemUsed{Seat: actor.Index, Target: target.Index, Item: ItemHandcuffs, Outcome: "cuffed"}}
}

func validateHandsaw(m *Match, _, _ *Seat) error {
	if m.sawActive {
		return ErrItemNoEffect
	}
	return nil
}

func resolveHandsaw(m *Match, actor, _ *Seat) []Event {
	m.sawActive = true
	return []Event{ItemUsed{Seat: actor.Index, Target: -1, Item: ItemHandsaw, Outcome: "saw_ready"}}
}

func resolvePhone(m *Match, actor, _ *Seat) []Event {
	if len(m.queue) < 2 {
		return []Event{ItemUsed{Seat: actor.Index, Target: -1, Item: ItemPhone, Outcome: "no_signal"}}
	}
	pos := 1 + m.rng.Intn(len(m.queue)-1)
	shell, _ := m.peek(pos)
	return []Event{
		ItemUsed{Seat: actor.Index, Target: -1, Item: ItemPhone, Outcome: "peeked_future"},
		ShellRevealed{Pos: pos, Shell: shell, PrivateTo: actor.Index},
	}
}

func resolveInverter(m *Match, actor, _ *Seat) []Event {
	if len(m.queue) > 0 {
		if m.queue[0] == ShellLive {
			m.queue[0] = ShellBlank
		} else {
			m.queue[0] = ShellLive
		}
	}
	// The flipped value stays hidden; clients only learn an inversion happened.
	return []Event{ItemUsed{Seat: actor.Index, Target: -1, Item: ItemInverter, Outcome: "inverted"}}
}

func validateAdrenaline(_ *Match, _, target *Seat) error {
	for kind, count := range target.Items {
		if kind != ItemAdrenaline && count > 0 {
			return nil
		}
	}
	return ErrInvalidTarget
}

func resolveAdrenaline(m *Match, actor, target *Seat) []Event {
	stealable := make([]ItemKind, 0, len(target.Items))
	for kind, count := range target.Items {
		if kind != ItemAdrenaline && count > 0 {
			stealable = append(stealable, kind)
		}
	}
	kind := stealable[m.rng.Intn(len(stealable))]
	target.Items[kind]--
	if target.Items[kind] == 0 {
		delete(target.Items, kind)
	}
	actor.Items[kind]++
	return []Event{ItemUsed{
		Seat:    actor.Index,
		Target:  target.Index,
		Item:    ItemAdrenaline,
		Outcome: fmt.Sprintf("stole_%s", kind),
	}}
}

func resolveMedicine(m *Match, actor, _ *Seat) []Event {
	if m.rng.Intn(2) == 0 {
		actor.HP += 2
		if actor.HP > actor.MaxHP {
			actor.HP = actor.MaxHP
		}
		return []Event{
			ItemUsed{Seat: actor.Index, Target: -1, Item: ItemMedicine, Outcome: "healed"},
			HPChanged{Seat: actor.Index, Delta: 2, HP: actor.HP},
		}
	}
	events := []Event{
		ItemUsed{Seat: actor.Index, Target: -1, Item: ItemMedicine, Outcome: "backfired"},
	}
	events = append(events, HPChanged{Seat: actor.Index, Delta: -1, HP: maxInt(actor.HP-1, 0)})
	events = append(events, m.applyDamage(actor, 1, "item")...)
	return events
}

func resolveTurnReverser(m *Match, actor, _ *Seat) []Event {
	m.direction = -m.direction
	return []Event{ItemUsed{Seat: actor.Index, Target: -1, Item: ItemTurnReverser, Outcome: "reversed"}}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
