// Package wire encodes and decodes protocol messages.
//
// Messages travel as CBOR maps tagged by "type". Decode validates the
// shape of every known type so downstream code never touches a
// half-formed message; unknown types pass through untouched and are
// forwarded verbatim by the relay.
package wire
