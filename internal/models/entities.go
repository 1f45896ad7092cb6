package models

import (
	"fmt"
	"strings"
)

// Kind identifies the type of a catalog entity.
type Kind string

const (
	KindArtist   Kind = "artist"
	KindAlbum    Kind = "album"
	KindTrack    Kind = "track"
	KindPlaylist Kind = "playlist"
)

// Artist represents an artist from any catalog.
type Artist struct {
	ID   string `json:"id,omitempty" yaml:"id,omitempty"`
	Name string `json:"name" yaml:"name"`
}

func (a Artist) String() string {
	return a.Name
}

// Album represents an album, EP or single from any catalog.
type Album struct {
	ID      string   `json:"id,omitempty" yaml:"id,omitempty"`
	Name    string   `json:"name" yaml:"name"`
	Artists []Artist `json:"artists" yaml:"artists"`
	Type    string   `json:"type" yaml:"type"`           // Album, EP, Single, ...
	Year    int      `json:"year,omitempty" yaml:"year"` // 0 when unknown
}

// PrimaryArtist returns the first credited artist, or the zero Artist.
func (a Album) PrimaryArtist() Artist {
	if len(a.Artists) == 0 {
		return Artist{}
	}
	return a.Artists[0]
}

func (a Album) String() string {
	return fmt.Sprintf("%s - %s (%s)", a.PrimaryArtist().Name, a.Name, a.Type)
}

// HasType reports whether the album's type tag matches one of types, ignoring case.
func (a Album) HasType(types ...string) bool {
	for _, t := range types {
		if strings.EqualFold(strings.TrimSpace(t), a.Type) {
			return true
		}
	}
	return false
}

// Track represents a song from any catalog.
type Track struct {
	ID      string   `json:"id,omitempty" yaml:"id,omitempty"`
	Name    string   `json:"name" yaml:"name"`
	Artists []Artist `json:"artists" yaml:"artists"`
	Album   *Album   `json:"album,omitempty" yaml:"album,omitempty"`
}

// PrimaryArtist returns the first credited artist, or the zero Artist.
func (t Track) PrimaryArtist() Artist {
	if len(t.Artists) == 0 {
		return Artist{}
	}
	return t.Artists[0]
}

// AlbumName returns the track's album name or an empty string.
func (t Track) AlbumName() string {
	if t.Album == nil {
		return ""
	}
	return t.Album.Name
}

func (t Track) String() string {
	if artist := t.PrimaryArtist().Name; artist != "" {
		return fmt.Sprintf("%s - %s", artist, t.Name)
	}
	return t.Name
}

// Playlist represents a playlist with its ordered track listing.
//
// Tracks is nil when only metadata was fetched.
type Playlist struct {
	ID          string  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Public      bool    `json:"public" yaml:"public"`
	TrackCount  int     `json:"track_count,omitempty" yaml:"track_count,omitempty"`
	Tracks      []Track `json:"tracks,omitempty" yaml:"tracks,omitempty"`
}

func (p Playlist) String() string {
	return p.Name
}

// NewArtists builds an artist list from names, skipping blanks.
func NewArtists(names ...string) []Artist {
	artists := make([]Artist, 0, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		artists = append(artists, Artist{Name: n})
	}
	return artists
}
