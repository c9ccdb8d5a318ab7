// Package config holds the torhybrid configuration: routing mode, Tor
// backend, timeouts, history storage and per-site HTTP settings. Values come
// from defaults, an optional YAML file and command line flags, in that order.
package config
