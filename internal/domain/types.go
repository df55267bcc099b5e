package domain

// Identity is the self-certifying string a client is addressed by,
// derived deterministically from its X25519 public key.
type Identity string

// String returns the string form of the identity.
func (id Identity) String() string { return string(id) }

// Room names a channel with a replayable backlog. Room keys are
// provisioned out-of-band by operators; the relay never sees them.
type Room string

// String returns the string form of the room name.
func (r Room) String() string { return string(r) }

// MessageID identifies a message. It is unique per publisher, not
// globally ordered.
type MessageID string

// String returns the string form of the message id.
func (m MessageID) String() string { return string(m) }
