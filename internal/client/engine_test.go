package client_test

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/sempicanha/commilink/internal/client"
	"github.com/sempicanha/commilink/internal/domain"
)

// capture collects an engine's outbound messages in place of a relay
// connection.
type capture struct {
	msgs []*domain.Message
}

func (c *capture) send(m *domain.Message) error {
	c.msgs = append(c.msgs, m)
	return nil
}

func (c *capture) last(t *testing.T, typ string) *domain.Message {
	t.Helper()
	if len(c.msgs) == 0 {
		t.Fatalf("no outbound messages, want a %s", typ)
	}
	m := c.msgs[len(c.msgs)-1]
	if m.Type != typ {
		t.Fatalf("last outbound = %s, want %s", m.Type, typ)
	}
	return m
}

func startEngine(t *testing.T, name string) (*client.Engine, *capture, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	e, err := client.New(name, out, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cap := &capture{}
	if err := e.Start(cap.send); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return e, cap, out
}

func randomRoomKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("rand: %v", err)
	}
	return base64.StdEncoding.EncodeToString(key)
}

func TestStart_AnnouncesHello(t *testing.T) {
	e, cap, _ := startEngine(t, "alice")

	hello := cap.last(t, domain.TypeHello)
	if hello.From != e.Identity() || len(hello.Pub) != 32 || hello.Name != "alice" {
		t.Fatalf("bad HELLO: %+v", hello)
	}
}

// TestHandshakeAndDirectMessage walks the full scenario: HELLO, ACCEPT,
// an encrypted direct message, and the resulting ACK.
func TestHandshakeAndDirectMessage(t *testing.T) {
	alice, aliceCap, _ := startEngine(t, "alice")
	bob, bobCap, bobOut := startEngine(t, "bob")

	// Bob processes Alice's HELLO and answers with an ACCEPT.
	bob.Handle(aliceCap.last(t, domain.TypeHello))
	accept := bobCap.last(t, domain.TypeAccept)
	if accept.To != alice.Identity() {
		t.Fatalf("ACCEPT addressed to %s, want %s", accept.To, alice.Identity())
	}

	// Alice processes the ACCEPT; both now hold the same session key.
	alice.Handle(accept)

	mid, err := alice.SendDirect(bob.Identity(), "hi")
	if err != nil {
		t.Fatalf("SendDirect: %v", err)
	}
	enc := aliceCap.last(t, domain.TypeEnc)
	if enc.To != bob.Identity() || enc.MID != mid {
		t.Fatalf("bad ENC: %+v", enc)
	}
	if len(enc.Data) <= len("hi") {
		t.Fatal("ciphertext missing its authentication tag")
	}

	bob.Handle(enc)
	if !strings.Contains(bobOut.String(), "hi") {
		t.Fatalf("bob did not decrypt the message; output %q", bobOut.String())
	}

	ack := bobCap.last(t, domain.TypeAck)
	if ack.MID != mid || ack.AckFor != alice.Identity() || ack.Room != "" {
		t.Fatalf("bad ACK: %+v", ack)
	}
}

func TestSendDirect_WithoutSessionKeyFails(t *testing.T) {
	alice, _, _ := startEngine(t, "alice")
	if _, err := alice.SendDirect("did:opp:x25519:stranger", "hi"); err != client.ErrNoSessionKey {
		t.Fatalf("err = %v, want ErrNoSessionKey", err)
	}
}

func TestHello_BadKeyMaterialLeavesHandshakeIncomplete(t *testing.T) {
	bob, bobCap, _ := startEngine(t, "bob")
	before := len(bobCap.msgs)

	bob.Handle(&domain.Message{
		Type: domain.TypeHello,
		From: "did:opp:x25519:mallory",
		Pub:  []byte{1, 2, 3}, // wrong size
		Name: "mallory",
	})

	// No ACCEPT reply, no session: the failure is local and silent.
	if len(bobCap.msgs) != before {
		t.Fatalf("engine replied to a malformed HELLO: %+v", bobCap.msgs[len(bobCap.msgs)-1])
	}
	if len(bob.Peers()) != 0 {
		t.Fatal("session cached despite failed derivation")
	}
}

func TestAccept_ForSomeoneElseIgnored(t *testing.T) {
	alice, aliceCap, _ := startEngine(t, "alice")
	bob, bobCap, _ := startEngine(t, "bob")

	bob.Handle(aliceCap.last(t, domain.TypeHello))
	accept := bobCap.last(t, domain.TypeAccept)
	accept.To = "did:opp:x25519:someoneelse"

	alice.Handle(accept)
	if len(alice.Peers()) != 0 {
		t.Fatal("ACCEPT for another identity created a session")
	}
}

func TestSelfEchoIgnored(t *testing.T) {
	alice, cap, _ := startEngine(t, "alice")
	before := len(cap.msgs)

	// The relay broadcasts our own HELLO back to us.
	alice.Handle(cap.last(t, domain.TypeHello))
	if len(cap.msgs) != before {
		t.Fatal("engine answered its own broadcast echo")
	}
}

func TestRoomPublishAndReceive(t *testing.T) {
	key := randomRoomKey(t)

	alice, aliceCap, _ := startEngine(t, "alice")
	bob, bobCap, bobOut := startEngine(t, "bob")

	if err := alice.Join("lobby", key); err != nil {
		t.Fatalf("Join: %v", err)
	}
	sub := aliceCap.last(t, domain.TypeSubscribe)
	if sub.Room != "lobby" {
		t.Fatalf("SUBSCRIBE room = %s, want lobby", sub.Room)
	}
	if err := bob.Join("lobby", key); err != nil {
		t.Fatalf("Join: %v", err)
	}

	mid, err := alice.Publish("lobby", "hello room")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	bob.Handle(aliceCap.last(t, domain.TypeEnc))

	if !strings.Contains(bobOut.String(), "hello room") {
		t.Fatalf("bob did not decrypt the room message; output %q", bobOut.String())
	}
	ack := bobCap.last(t, domain.TypeAck)
	if ack.MID != mid || ack.Room != "lobby" || ack.AckFor != alice.Identity() {
		t.Fatalf("bad room ACK: %+v", ack)
	}
}

func TestRoomMessage_WithoutKeyDroppedSilently(t *testing.T) {
	key := randomRoomKey(t)

	alice, aliceCap, _ := startEngine(t, "alice")
	carol, carolCap, carolOut := startEngine(t, "carol")

	if err := alice.Join("lobby", key); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if err := carol.Join("lobby", ""); err != nil { // joined, no group key
		t.Fatalf("Join: %v", err)
	}

	if _, err := alice.Publish("lobby", "secret"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	before := len(carolCap.msgs)
	carol.Handle(aliceCap.last(t, domain.TypeEnc))

	if strings.Contains(carolOut.String(), "secret") {
		t.Fatal("message readable without the room key")
	}
	if len(carolCap.msgs) != before {
		t.Fatal("undecryptable room message was acked")
	}
}

func TestTamperedMessage_DroppedWithoutAck(t *testing.T) {
	alice, aliceCap, _ := startEngine(t, "alice")
	bob, bobCap, bobOut := startEngine(t, "bob")

	bob.Handle(aliceCap.last(t, domain.TypeHello))
	alice.Handle(bobCap.last(t, domain.TypeAccept))

	if _, err := alice.SendDirect(bob.Identity(), "hi"); err != nil {
		t.Fatalf("SendDirect: %v", err)
	}
	enc := aliceCap.last(t, domain.TypeEnc)
	enc.Data[0] ^= 0xff

	before := len(bobCap.msgs)
	bob.Handle(enc)
	if strings.Contains(bobOut.String(), "hi") {
		t.Fatal("tampered message delivered")
	}
	if len(bobCap.msgs) != before {
		t.Fatal("tampered message was acked")
	}
}

func TestJoin_RejectsBadRoomKey(t *testing.T) {
	alice, _, _ := startEngine(t, "alice")
	if err := alice.Join("lobby", "tooshort"); err == nil {
		t.Fatal("expected error for undersized room key")
	}
}

func TestRevoke_PublishesTombstone(t *testing.T) {
	alice, cap, _ := startEngine(t, "alice")
	if err := alice.Revoke("123-abc"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	ts := cap.last(t, domain.TypeTombstone)
	if ts.TargetMID != "123-abc" || ts.From != alice.Identity() {
		t.Fatalf("bad TOMBSTONE: %+v", ts)
	}
}
