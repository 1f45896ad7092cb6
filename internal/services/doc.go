// Package services defines the [MusicLibrary] interface for music catalogs and implements it for Spotify and YouTube Music.
//
// # MusicLibrary Interface
//
// Every provider exposes the same reader, writer and search surface so the migrator can move a library
// between any source and target pair. Providers advertise what they actually support through a [Capability]
// set; calls outside that set return a [shared.CapabilityError], which matches [shared.ErrUnsupported].
//
// # Spotify Implementation
//
// [SpotifyService] talks to the Web API through an [oauth2] client that refreshes expired tokens.
// Requests are paced by a token-bucket limiter when requests_per_second is set.
// Listings are offset-paginated, except followed artists which use the cursor endpoint.
// Membership checks use the /contains endpoints in batches (20 for albums, 50 otherwise)
// and tracks are appended to playlists 100 at a time.
//
// # YouTube Music Implementation
//
// [YouTubeService] communicates with the proxy server wrapping ytmusicapi.
// The auth_file path is sent via X-Auth-File header on each request.
// The proxy exposes library reads, search and playlist writes only; follow, save and like
// and their membership checks report [shared.ErrUnsupported].
//
// # OAuth Service Extension
//
// The [OAuthService] interface is implemented by providers that authorize through the code flow.
// [SpotifyService] implements it for the CLI's local callback server.
//
// # Error Handling
//
// Services use sentinel errors from the shared package:
//   - [shared.ErrNotAuthenticated] : no token or auth file configured
//   - [shared.ErrTokenExpired] : OAuth token rejected, reauthorization needed
//   - [shared.ErrRateLimited] : provider returned 429
//   - [shared.ErrAPIRequest] : any other non-2xx response
//   - [shared.ErrServiceUnavailable] : the YouTube proxy could not be reached
package services
