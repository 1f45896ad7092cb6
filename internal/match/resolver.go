package match

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/portable/internal/models"
	"github.com/desertthunder/portable/internal/services"
	"github.com/desertthunder/portable/internal/shared"
)

// Options configures a [Resolver].
type Options struct {
	Dialect  Dialect // defaults to [PlainDialect]
	Scorer   Scorer  // defaults to token_sort
	MinScore float64 // multi-candidate picks below this are rejected; 0 disables
	Logger   *log.Logger
}

// Resolver maps source entities onto a target catalog via search.
type Resolver struct {
	searcher services.Searcher
	dialect  Dialect
	scorer   Scorer
	minScore float64
	logger   *log.Logger
}

// Match is a resolved search hit.
type Match struct {
	Item       services.SearchItem
	Query      string  // query that produced the hit
	Score      float64 // similarity to the entity name; 1 for a single hit
	Candidates int     // number of hits the pick was made from
}

// Artist returns the hit as a target-catalog artist.
func (m *Match) Artist() models.Artist {
	return models.Artist{ID: m.Item.ID, Name: m.Item.Name}
}

// Album returns the hit as a target-catalog album.
func (m *Match) Album() models.Album {
	return models.Album{ID: m.Item.ID, Name: m.Item.Name, Artists: m.Item.Artists, Type: m.Item.Type, Year: m.Item.Year}
}

// Track returns the hit as a target-catalog track.
func (m *Match) Track() models.Track {
	t := models.Track{ID: m.Item.ID, Name: m.Item.Name, Artists: m.Item.Artists}
	if m.Item.Album != "" {
		t.Album = &models.Album{Name: m.Item.Album}
	}
	return t
}

// NewResolver returns a resolver searching s.
func NewResolver(s services.Searcher, opts Options) *Resolver {
	if opts.Dialect == nil {
		opts.Dialect = PlainDialect{}
	}
	if opts.Scorer == nil {
		opts.Scorer = ScorerFunc(TokenSortRatio)
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &Resolver{
		searcher: s,
		dialect:  opts.Dialect,
		scorer:   opts.Scorer,
		minScore: opts.MinScore,
		logger:   opts.Logger,
	}
}

// ResolveArtist finds artist in the target catalog.
func (r *Resolver) ResolveArtist(ctx context.Context, artist models.Artist) (*Match, error) {
	return r.Resolve(ctx, models.KindArtist, artist.Name, ArtistPlan(artist))
}

// ResolveAlbum finds album in the target catalog.
func (r *Resolver) ResolveAlbum(ctx context.Context, album models.Album) (*Match, error) {
	return r.Resolve(ctx, models.KindAlbum, album.Name, AlbumPlan(album))
}

// ResolveTrack finds track in the target catalog.
func (r *Resolver) ResolveTrack(ctx context.Context, track models.Track) (*Match, error) {
	return r.Resolve(ctx, models.KindTrack, track.Name, TrackPlan(track))
}

// Resolve walks plan until a query returns hits and picks the hit closest to name.
//
// Search errors are returned as is; an exhausted plan returns [shared.ErrNoMatch].
func (r *Resolver) Resolve(ctx context.Context, kind models.Kind, name string, plan []Step) (*Match, error) {
	queries := Queries(r.dialect, plan)
	if len(queries) == 0 {
		return nil, fmt.Errorf("%w: %s has no searchable name", shared.ErrNoMatch, kind)
	}

	for _, q := range queries {
		items, used, err := r.search(ctx, kind, q)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			continue
		}

		m := r.pick(name, items)
		m.Query = used
		if m.Candidates > 1 && r.minScore > 0 && m.Score < r.minScore {
			return nil, fmt.Errorf("%w: best %s for %q scored %.2f, below %.2f", shared.ErrNoMatch, kind, name, m.Score, r.minScore)
		}

		r.logger.Debug("resolved", "kind", kind, "name", name, "query", used, "id", m.Item.ID, "score", m.Score)
		return m, nil
	}

	return nil, fmt.Errorf("%w: no %s found for %q", shared.ErrNoMatch, kind, name)
}

// search runs q, retrying once without apostrophes when it returns nothing.
func (r *Resolver) search(ctx context.Context, kind models.Kind, q string) ([]services.SearchItem, string, error) {
	items, err := r.query(ctx, kind, q)
	if err != nil || len(items) > 0 {
		return items, q, err
	}

	stripped := stripApostrophes(q)
	if stripped == q {
		return nil, q, nil
	}

	r.logger.Debug("retrying without apostrophes", "kind", kind, "query", stripped)
	items, err = r.query(ctx, kind, stripped)
	return items, stripped, err
}

func (r *Resolver) query(ctx context.Context, kind models.Kind, q string) ([]services.SearchItem, error) {
	result, err := r.searcher.Search(ctx, q, kind)
	if err != nil {
		return nil, fmt.Errorf("search %s %q: %w", kind, q, err)
	}
	if result == nil {
		return nil, nil
	}
	r.logger.Debug("searched", "kind", kind, "query", q, "total", result.Total, "items", len(result.Items))
	return result.Items, nil
}

func (r *Resolver) pick(name string, items []services.SearchItem) *Match {
	if len(items) == 1 {
		return &Match{Item: items[0], Score: 1, Candidates: 1}
	}

	best, bestScore := 0, -1.0
	for i, item := range items {
		if s := r.scorer.Score(name, item.Name); s > bestScore {
			best, bestScore = i, s
		}
	}
	return &Match{Item: items[best], Score: bestScore, Candidates: len(items)}
}

var apostrophes = strings.NewReplacer("'", "", "’", "")

func stripApostrophes(s string) string {
	return apostrophes.Replace(s)
}
