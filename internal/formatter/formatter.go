// package formatter renders run reports and library snapshots (text, Markdown, CSV, YAML, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/portable/internal/models"
	"github.com/desertthunder/portable/internal/shared"
	"gopkg.in/yaml.v3"
)

// Format names an output encoding.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatYAML     Format = "yaml"
	FormatJSON     Format = "json"
)

// ParseFormat converts a user-supplied format name into a [Format].
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

// Ext returns the file extension used for f.
func (f Format) Ext() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatCSV:
		return ".csv"
	case FormatYAML:
		return ".yaml"
	case FormatJSON:
		return ".json"
	default:
		return ".txt"
	}
}

// ArtistNames joins the names of artists with ", ".
func ArtistNames(artists []models.Artist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// PlaylistToCSV converts a playlist's tracks to CSV with columns: Position, ID, Name, Artists, Album
func PlaylistToCSV(pl models.Playlist) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Position", "ID", "Name", "Artists", "Album"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, track := range pl.Tracks {
		record := []string{
			strconv.Itoa(i + 1),
			track.ID,
			track.Name,
			ArtistNames(track.Artists),
			track.AlbumName(),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// PlaylistToMarkdown converts a playlist to a Markdown document.
func PlaylistToMarkdown(pl models.Playlist) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", pl.Name)
	if pl.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", pl.Description)
	}
	fmt.Fprintf(&buf, "**Tracks**: %d\n", len(pl.Tracks))
	fmt.Fprintf(&buf, "**Visibility**: %s\n\n", shared.VisibilityString(pl.Public))

	buf.WriteString("## Tracks\n\n")
	for i, track := range pl.Tracks {
		albumPart := ""
		if album := track.AlbumName(); album != "" {
			albumPart = fmt.Sprintf(" (%s)", album)
		}
		fmt.Fprintf(&buf, "%d. %s%s\n", i+1, track, albumPart)
	}
	return buf.Bytes(), nil
}

// PlaylistToText converts a playlist to plain text.
func PlaylistToText(pl models.Playlist) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", pl.Name)
	if pl.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", pl.Description)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(pl.Tracks))

	for i, track := range pl.Tracks {
		fmt.Fprintf(&buf, "%d. %s\n", i+1, track)
	}
	return buf.Bytes(), nil
}

// RenderPlaylist encodes a playlist with its tracks in format f.
func RenderPlaylist(pl models.Playlist, f Format) ([]byte, error) {
	switch f {
	case FormatCSV:
		return PlaylistToCSV(pl)
	case FormatMarkdown:
		return PlaylistToMarkdown(pl)
	case FormatYAML:
		return yaml.Marshal(pl)
	case FormatJSON:
		return shared.MarshalJSON(pl, true)
	default:
		return PlaylistToText(pl)
	}
}

// Library is a point-in-time snapshot of a user's library on one provider.
type Library struct {
	Provider  string            `json:"provider" yaml:"provider"`
	Artists   []models.Artist   `json:"artists" yaml:"artists"`
	Albums    []models.Album    `json:"albums" yaml:"albums"`
	Liked     []models.Track    `json:"liked_tracks" yaml:"liked_tracks"`
	Playlists []models.Playlist `json:"playlists" yaml:"playlists"`
}

// LibraryToMarkdown renders the library's artists, albums and liked tracks.
//
// Playlists are listed by name only; their tracks are written to separate files.
func LibraryToMarkdown(lib Library) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s library\n\n", lib.Provider)

	fmt.Fprintf(&buf, "## Artists (%d)\n\n", len(lib.Artists))
	for _, a := range lib.Artists {
		fmt.Fprintf(&buf, "- %s\n", a.Name)
	}

	fmt.Fprintf(&buf, "\n## Albums (%d)\n\n", len(lib.Albums))
	for _, a := range lib.Albums {
		year := ""
		if a.Year > 0 {
			year = fmt.Sprintf(" [%d]", a.Year)
		}
		fmt.Fprintf(&buf, "- %s%s\n", a, year)
	}

	fmt.Fprintf(&buf, "\n## Liked tracks (%d)\n\n", len(lib.Liked))
	for i, t := range lib.Liked {
		fmt.Fprintf(&buf, "%d. %s\n", i+1, t)
	}

	fmt.Fprintf(&buf, "\n## Playlists (%d)\n\n", len(lib.Playlists))
	for _, pl := range lib.Playlists {
		fmt.Fprintf(&buf, "- %s (%d tracks)\n", pl.Name, playlistSize(pl))
	}
	return buf.Bytes(), nil
}

// LibraryToText renders a short plain-text inventory of the library.
func LibraryToText(lib Library) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Provider: %s\n", lib.Provider)
	fmt.Fprintf(&buf, "Artists: %d\n", len(lib.Artists))
	fmt.Fprintf(&buf, "Albums: %d\n", len(lib.Albums))
	fmt.Fprintf(&buf, "Liked tracks: %d\n", len(lib.Liked))
	fmt.Fprintf(&buf, "Playlists: %d\n", len(lib.Playlists))
	for _, pl := range lib.Playlists {
		fmt.Fprintf(&buf, "  %s (%d tracks)\n", pl.Name, playlistSize(pl))
	}
	return buf.Bytes(), nil
}

// LibraryToCSV writes one row per library entity with columns: Kind, ID, Name, Artists, Album
func LibraryToCSV(lib Library) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	rows := [][]string{{"Kind", "ID", "Name", "Artists", "Album"}}
	for _, a := range lib.Artists {
		rows = append(rows, []string{string(models.KindArtist), a.ID, a.Name, "", ""})
	}
	for _, a := range lib.Albums {
		rows = append(rows, []string{string(models.KindAlbum), a.ID, a.Name, ArtistNames(a.Artists), ""})
	}
	for _, t := range lib.Liked {
		rows = append(rows, []string{string(models.KindTrack), t.ID, t.Name, ArtistNames(t.Artists), t.AlbumName()})
	}
	for _, pl := range lib.Playlists {
		rows = append(rows, []string{string(models.KindPlaylist), pl.ID, pl.Name, "", ""})
	}

	if err := writer.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("failed to write CSV: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderLibrary encodes lib in format f. Structured formats omit playlist tracks.
func RenderLibrary(lib Library, f Format) ([]byte, error) {
	meta := lib
	meta.Playlists = make([]models.Playlist, len(lib.Playlists))
	for i, pl := range lib.Playlists {
		pl.TrackCount = playlistSize(pl)
		pl.Tracks = nil
		meta.Playlists[i] = pl
	}

	switch f {
	case FormatCSV:
		return LibraryToCSV(meta)
	case FormatMarkdown:
		return LibraryToMarkdown(meta)
	case FormatYAML:
		return yaml.Marshal(meta)
	case FormatJSON:
		return shared.MarshalJSON(meta, true)
	default:
		return LibraryToText(meta)
	}
}

// WriteFile renders data into dir/name+ext, creating dir as needed, and returns the path.
func WriteFile(dir, name string, f Format, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	path := filepath.Join(dir, name+f.Ext())
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// WritePlaylistExport writes pl to dir, named after its id, and returns the created path.
func WritePlaylistExport(pl models.Playlist, dir string, f Format) (string, error) {
	data, err := RenderPlaylist(pl, f)
	if err != nil {
		return "", fmt.Errorf("failed to render playlist %q: %w", pl.Name, err)
	}
	return WriteFile(dir, FileName(pl.ID, pl.Name), f, data)
}

// FileName returns a filesystem-safe base name, preferring id and falling back to name.
func FileName(id, name string) string {
	base := id
	if base == "" {
		base = name
	}
	base = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, strings.TrimSpace(base))
	if base == "" {
		return "untitled"
	}
	return base
}

func playlistSize(pl models.Playlist) int {
	if pl.Tracks != nil {
		return len(pl.Tracks)
	}
	return pl.TrackCount
}
