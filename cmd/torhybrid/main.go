// Package main provides the entry point for the torhybrid CLI.
//
// torhybrid fetches URLs over a hybrid transport: .onion hosts go through
// Tor, everything else is dialed directly. The routing mode can also force
// all traffic to one side.
//
// Usage:
//
//	torhybrid fetch <url>...
//	torhybrid route <host>...
//	torhybrid check
//	torhybrid history
//
// See --help for all available options.
package main

// main is the entry point for torhybrid.
func main() {
	Execute()
}
