// Package client implements the relay client engine: session-key
// agreement with peers over HELLO/ACCEPT, payload encryption and
// decryption, room membership, and acknowledgement of delivered
// messages. The interactive command line in cmd/commilink is a thin
// shell over this package.
package client
