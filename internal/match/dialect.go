package match

import (
	"fmt"
	"strings"

	"github.com/desertthunder/portable/internal/services"
)

// Field names a search filter. The empty field is free text.
type Field string

const (
	FieldNone   Field = ""
	FieldTrack  Field = "track"
	FieldArtist Field = "artist"
	FieldAlbum  Field = "album"
)

// Term is one component of a search query.
type Term struct {
	Field Field
	Value string
}

// Dialect renders terms into a provider query string.
type Dialect interface {
	Name() string
	Render(terms []Term) string
}

// SpotifyDialect renders field terms as field:"value".
type SpotifyDialect struct{}

func (SpotifyDialect) Name() string { return "spotify" }

func (SpotifyDialect) Render(terms []Term) string {
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		value := strings.TrimSpace(t.Value)
		if t.Field == FieldNone {
			parts = append(parts, value)
			continue
		}
		parts = append(parts, fmt.Sprintf(`%s:"%s"`, t.Field, strings.ReplaceAll(value, `"`, "")))
	}
	return strings.Join(parts, " ")
}

// PlainDialect renders every term as its bare value.
type PlainDialect struct{}

func (PlainDialect) Name() string { return "plain" }

func (PlainDialect) Render(terms []Term) string {
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		parts = append(parts, strings.TrimSpace(t.Value))
	}
	return strings.Join(parts, " ")
}

// DialectFor returns the dialect understood by the named provider.
func DialectFor(provider string) Dialect {
	if strings.EqualFold(provider, services.SpotifyName) {
		return SpotifyDialect{}
	}
	return PlainDialect{}
}
