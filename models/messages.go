package models

import (
	"encoding/json"

	"shellduel/duel/engine"
)

// ClientMessage is the inbound websocket envelope; the payload shape depends
// on Type.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ServerMessage is the outbound envelope.
type ServerMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Inbound payloads.

type CreateRoomPayload struct {
	Password string `json:"password,omitempty"`
}

type JoinRoomPayload struct {
	Code     string `json:"code"`
	Password string `json:"password,omitempty"`
}

type ReconnectPayload struct {
	Code  string `json:"roomCode"`
	Token string `json:"reconnectToken"`
}

type ShootPayload struct {
	Target int `json:"targetSeat"`
}

type UseItemPayload struct {
	Item   string `json:"itemKind"`
	Target *int   `json:"targetSeat,omitempty"`
}

// Outbound payloads.

// RoomSummary is what the lobby list shows: never the password hash, only
// whether one is set.
type RoomSummary struct {
	Code        string `json:"code"`
	Occupancy   int    `json:"occupancy"`
	Capacity    int    `json:"capacity"`
	HasPassword bool   `json:"hasPassword"`
}

type RoomListPayload struct {
	Rooms []RoomSummary `json:"rooms"`
}

type SeatInfo struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	IsHost    bool   `json:"isHost"`
	Connected bool   `json:"connected"`
}

// RoomStatePayload is sent on create/join and whenever membership changes.
type RoomStatePayload struct {
	Code     string     `json:"code"`
	State    string     `json:"state"`
	Seats    []SeatInfo `json:"seats"`
	YourSeat int        `json:"yourSeat"`
	IsHost   bool       `json:"isHost"`
}

// ErrorPayload is a typed rejection: Event names the refused inbound event,
// Reason is a stable machine code.
type ErrorPayload struct {
	Event   string `json:"event"`
	Reason  string `json:"reason"`
	Message string `json:"message,omitempty"`
}

// MatchStartedPayload is delivered privately per seat at match start; the
// reconnect token is the seat's resume credential for this match instance.
type MatchStartedPayload struct {
	Seat           int             `json:"seat"`
	ReconnectToken string          `json:"reconnectToken"`
	Snapshot       engine.Snapshot `json:"snapshot"`
}

// ReconnectedPayload resumes a dropped seat with a full snapshot and a fresh
// single-use token.
type ReconnectedPayload struct {
	Code           string          `json:"roomCode"`
	Seat           int             `json:"seat"`
	ReconnectToken string          `json:"reconnectToken"`
	Snapshot       engine.Snapshot `json:"snapshot"`
}

type AlreadyInGamePayload struct {
	RoomCode     string `json:"roomCode"`
	MatchStarted bool   `json:"matchStarted"`
}

// MatchResultPayload mirrors the persisted result record for clients.
type MatchResultPayload struct {
	RoomCode  string            `json:"roomCode"`
	MatchID   string            `json:"matchId"`
	Winner    int               `json:"winner"`
	Standings []engine.Standing `json:"standings"`
}
