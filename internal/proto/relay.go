package proto

// Frame types exchanged with the dedicated chat relay.
const (
	RelayTypeAuth        = "auth"
	RelayTypeAuthSuccess = "auth_success"
	RelayTypeError       = "error"
	RelayTypeJoin        = "join"
	RelayTypeChat        = "chat"
	RelayTypePresence    = "presence"
)

// Presence states carried by relay presence frames and broker envelopes.
const (
	PresenceStateJoin  = "join"
	PresenceStateLeave = "leave"
)

// RelayFrame is one JSON frame on the relay connection, inbound or outbound.
// Only the fields relevant to a given Type are populated.
type RelayFrame struct {
	Type    string   `json:"type"`
	Message string   `json:"message,omitempty"`
	PIN     string   `json:"pin,omitempty"`
	Game    string   `json:"game,omitempty"`
	State   string   `json:"state,omitempty"`
	ID      *uint32  `json:"id,omitempty"`
	Name    string   `json:"name,omitempty"`
	Hue     *float64 `json:"hue,omitempty"`
	Text    string   `json:"text,omitempty"`
}
