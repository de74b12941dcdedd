// Package bridgesdk is a Go client for the gqlbridge demo server.
//
// It fetches server-rendered pages together with the cache payload embedded
// in them, reads the devtools snapshot and drives the login endpoints. The
// hydrate command uses it to play the browser side of a render.
package bridgesdk
