// Package commands wires the commilink client CLI: connect to a relay,
// announce an identity, then drive the session from an interactive
// prompt.
package commands
