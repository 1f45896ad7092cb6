// Package match resolves entities from one catalog against another catalog's search index.
//
// # Queries
//
// A query is a list of [Term] values rendered by a [Dialect]. Spotify understands field
// filters (track:"..." artist:"..." album:"..."); other providers receive bare values.
//
// # Relaxation
//
// Each entity kind has a fixed plan of progressively looser queries:
//
//	track:  track+artist+album, track+artist, "name artist", name
//	artist: artist filter, bare name
//	album:  album+artist, "album artist", album
//
// Steps whose fields are missing are skipped and a step that renders the same text as the
// previous one is dropped. A step runs only when the previous one returned nothing. A query
// containing an apostrophe that returns nothing is retried once without apostrophes before
// the plan moves on.
//
// # Selection
//
// A single hit is used as is. Several hits are scored against the entity name with the
// configured [Scorer]; the highest score wins and the first hit wins ties. No hits after
// the whole plan yields [shared.ErrNoMatch].
package match
