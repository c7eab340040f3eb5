// Package main hosts the longrec CLI entrypoint and command graph.
//
// The Cobra command tree resolves the configuration once, builds the
// structured logger from it and hands both to the internal packages: scan and
// plan inspect the recording, assemble and navigate drive a session, serve
// exposes a session over HTTP, and the config, check and cache commands cover
// maintenance.
//
// Keep this package lean: new behaviour belongs in the internal packages and
// is surfaced here through a dedicated command or flag.
package main
