package proto

import "encoding/json"

// GameFrame is the envelope of every message observed on the game stream.
// The bridge only reads these; it never writes to the game connection.
type GameFrame struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
}

const (
	GameFrameWelcome    = "welcome"
	GameFrameEntered    = "entered"
	GameFramePlayerName = "player_name"
	GameFrameShipGone   = "shipgone"
)

// GameWelcomeData announces the session the stream belongs to.
type GameWelcomeData struct {
	Name     string      `json:"name"`
	SystemID json.Number `json:"systemid"`
}

// GameEnteredData carries the ship id assigned to the local player.
// ShipID is a pointer so a frame without one is distinguishable.
type GameEnteredData struct {
	ShipID *uint32 `json:"shipid"`
}

// GamePlayerNameData announces or updates a participant's display info.
type GamePlayerNameData struct {
	ID         uint32         `json:"id"`
	PlayerName string         `json:"player_name"`
	Hue        float64        `json:"hue"`
	Custom     map[string]any `json:"custom"`
}
