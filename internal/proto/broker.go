package proto

// Envelope types published on broker topics.
const (
	EnvelopeTypeChat     = "chat"
	EnvelopeTypePresence = "presence"
)

// BrokerEnvelope is the payload published on a broker session topic.
// Game always carries the session key so subscribers can drop frames
// that leaked in from a stale subscription.
type BrokerEnvelope struct {
	Type  string  `json:"type"`
	Game  string  `json:"game"`
	ID    uint32  `json:"id"`
	Name  string  `json:"name,omitempty"`
	Hue   float64 `json:"hue,omitempty"`
	Text  string  `json:"text,omitempty"`
	State string  `json:"state,omitempty"`
}

// BrokerTopic derives the topic for one session.
func BrokerTopic(account, namespace, game string) string {
	return account + "/" + namespace + "/" + game
}
