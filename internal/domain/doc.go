// Package domain defines the types shared by the relay and the client:
// identities, rooms, wire message shapes and their type tags.
package domain
