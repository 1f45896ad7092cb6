package match

import (
	"strings"

	"github.com/desertthunder/portable/internal/models"
)

// Step is one query of a relaxation plan.
type Step []Term

func (s Step) complete() bool {
	for _, t := range s {
		if strings.TrimSpace(t.Value) == "" {
			return false
		}
	}
	return len(s) > 0
}

// TrackPlan returns the relaxation steps for a track.
func TrackPlan(t models.Track) []Step {
	name, artist, album := t.Name, t.PrimaryArtist().Name, t.AlbumName()
	return []Step{
		{{FieldTrack, name}, {FieldArtist, artist}, {FieldAlbum, album}},
		{{FieldTrack, name}, {FieldArtist, artist}},
		{{FieldNone, name}, {FieldNone, artist}},
		{{FieldNone, name}},
	}
}

// ArtistPlan returns the relaxation steps for an artist.
func ArtistPlan(a models.Artist) []Step {
	return []Step{
		{{FieldArtist, a.Name}},
		{{FieldNone, a.Name}},
	}
}

// AlbumPlan returns the relaxation steps for an album.
func AlbumPlan(a models.Album) []Step {
	artist := a.PrimaryArtist().Name
	return []Step{
		{{FieldAlbum, a.Name}, {FieldArtist, artist}},
		{{FieldNone, a.Name}, {FieldNone, artist}},
		{{FieldNone, a.Name}},
	}
}

// Queries renders plan with d, skipping incomplete steps and consecutive duplicates.
func Queries(d Dialect, plan []Step) []string {
	var out []string
	for _, step := range plan {
		if !step.complete() {
			continue
		}
		q := d.Render(step)
		if len(out) > 0 && out[len(out)-1] == q {
			continue
		}
		out = append(out, q)
	}
	return out
}
