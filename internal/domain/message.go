package domain

// Message type tags. The set is closed for validation purposes, but the
// relay forwards unknown tags verbatim for forward compatibility.
const (
	TypeHello     = "HELLO"
	TypeAccept    = "ACCEPT"
	TypeEnc       = "ENC"
	TypeAck       = "ACK"
	TypeSubscribe = "SUBSCRIBE"
	TypeTombstone = "TOMBSTONE"
)

// Message is the unit of exchange. Field presence varies by type; the
// wire package validates shape at decode time. A Message is immutable
// once created.
type Message struct {
	Type string   `json:"type"`
	From Identity `json:"from,omitempty"`
	To   Identity `json:"to,omitempty"`
	Room Room     `json:"room,omitempty"`

	MID MessageID `json:"mid,omitempty"`

	// HELLO/ACCEPT carry the sender's public key and display name.
	Pub  []byte `json:"pub,omitempty"`
	Name string `json:"name,omitempty"`

	// ENC payload: fresh random nonce plus AEAD ciphertext.
	Nonce []byte `json:"nonce,omitempty"`
	Data  []byte `json:"data,omitempty"`

	// ACK fields. AckFor names the identity whose pending queue held
	// the message.
	AckFor Identity `json:"ack_for,omitempty"`

	// TOMBSTONE revocation target.
	TargetMID MessageID `json:"target_mid,omitempty"`

	// Publish time, milliseconds since the Unix epoch.
	TS int64 `json:"ts,omitempty"`
}

// Direct reports whether an ENC message is addressed to a single peer.
func (m *Message) Direct() bool { return m.To != "" }
