// Package main runs the commilink relay: a store-and-forward websocket
// hub for end-to-end-encrypted messages. It never sees plaintext or
// private keys; it only routes ciphertext and public announcements.
//
// Protocol
//
//	HELLO      {from, pub, name}: binds the sender's identity to its
//	           connection, flushes the sender's pending queue, and is
//	           rebroadcast to every other connection.
//	ACCEPT     {from, to, pub}: delivered to `to` if online, queued
//	           otherwise; broadcast when unaddressed.
//	ENC        {from, to?, room?, mid, nonce, data}: direct messages are
//	           delivered or queued; room messages are appended to the
//	           room backlog and broadcast to all connections (clients
//	           filter rooms they did not join); with neither field the
//	           message is broadcast to everyone but the sender.
//	SUBSCRIBE  {from, room}: replays the room's complete backlog to the
//	           requester, oldest first.
//	ACK        {mid, ack_for, room?}: removes the acknowledged message
//	           from ack_for's pending queue and the named backlog, then
//	           is rebroadcast.
//	TOMBSTONE  {target_mid}: removes the target from every queue and
//	           backlog. Idempotent.
//
// Behaviour
//
//   - One goroutine routes all traffic; each message is handled to
//     completion before the next.
//   - State snapshots to a single JSON file after every mutation and on
//     shutdown, written via temp-file-then-rename.
//   - Only failure to bind the listen address is fatal.
//
// Configuration comes from flags, the COMMILINK_LISTEN and
// COMMILINK_SNAPSHOT environment variables, and an optional TOML file,
// in that order of precedence.
package main
