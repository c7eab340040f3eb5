// Package httpapi exposes a running session to a display front end over HTTP.
//
// The bridge is a thin adapter: it never assembles data itself. Every
// navigation request goes through session.Navigate, so a failed reload
// answers with an error while the session keeps its previous position.
package httpapi
