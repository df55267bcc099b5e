// Package relay implements the central relay server: a websocket
// accept loop feeding a single-threaded router, a connection registry
// mapping authenticated identities to live connections, and a durable
// store of pending queues and room backlogs.
//
// Protocol behaviour, by message type:
//
//	HELLO      register the sender, flush its pending queue over the new
//	           connection, rebroadcast the announcement to everyone else.
//	ACCEPT     deliver to the addressed peer, queueing if offline.
//	ENC        direct (to): deliver or queue. Room (room): append to the
//	           backlog and broadcast. Neither: broadcast fallback.
//	SUBSCRIBE  replay the room's full backlog to the requester.
//	ACK        drop the acknowledged message from the target's pending
//	           queue (and, if room is set, from that backlog), rebroadcast.
//	TOMBSTONE  remove the target mid from every queue and backlog,
//	           rebroadcast. Idempotent.
//	other      rebroadcast verbatim for forward compatibility.
//
// Every event is handled to completion before the next one; the store
// and registry are only ever mutated from that one goroutine.
package relay
