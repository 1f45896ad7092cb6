package models

import (
	"fmt"
	"time"
)

// Pass names one stage of a migration run.
type Pass string

const (
	PassArtists     Pass = "artists"
	PassAlbums      Pass = "albums"
	PassLikedTracks Pass = "liked_tracks"
	PassPlaylists   Pass = "playlists"
)

// AllPasses returns every pass in the order a run executes them.
func AllPasses() []Pass {
	return []Pass{PassArtists, PassAlbums, PassLikedTracks, PassPlaylists}
}

// ParsePass converts a user-supplied pass name into a [Pass].
func ParsePass(s string) (Pass, error) {
	switch s {
	case "artists", "artist":
		return PassArtists, nil
	case "albums", "album":
		return PassAlbums, nil
	case "liked_tracks", "liked", "tracks":
		return PassLikedTracks, nil
	case "playlists", "playlist":
		return PassPlaylists, nil
	default:
		return "", fmt.Errorf("unknown pass %q", s)
	}
}

// Outcome records what happened to a single entity.
type Outcome string

const (
	OutcomeWritten    Outcome = "written"    // mutation sent (or would be, in a dry run)
	OutcomeExists     Outcome = "exists"     // already present on the target, no-op
	OutcomeUnresolved Outcome = "unresolved" // no match in the target catalog
	OutcomeFailed     Outcome = "failed"     // resolution or write error
	OutcomeSkipped    Outcome = "skipped"    // filtered out before resolution
)

// RunStatus is the lifecycle state of a [Run].
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Tally counts item outcomes.
type Tally struct {
	Written    int `json:"written" yaml:"written"`
	Existing   int `json:"existing" yaml:"existing"`
	Unresolved int `json:"unresolved" yaml:"unresolved"`
	Failed     int `json:"failed" yaml:"failed"`
	Skipped    int `json:"skipped" yaml:"skipped"`
}

// Add increments the counter for o.
func (t *Tally) Add(o Outcome) {
	switch o {
	case OutcomeWritten:
		t.Written++
	case OutcomeExists:
		t.Existing++
	case OutcomeUnresolved:
		t.Unresolved++
	case OutcomeFailed:
		t.Failed++
	case OutcomeSkipped:
		t.Skipped++
	}
}

// Merge adds other's counters to t.
func (t *Tally) Merge(other Tally) {
	t.Written += other.Written
	t.Existing += other.Existing
	t.Unresolved += other.Unresolved
	t.Failed += other.Failed
	t.Skipped += other.Skipped
}

// Total returns the number of items counted.
func (t Tally) Total() int {
	return t.Written + t.Existing + t.Unresolved + t.Failed + t.Skipped
}

// Run is a persisted record of one migration run.
type Run struct {
	id          string
	sequence    int
	source      string
	target      string
	status      RunStatus
	dryRun      bool
	tally       Tally
	message     string
	startedAt   time.Time
	completedAt *time.Time
	createdAt   time.Time
	updatedAt   time.Time
}

// NewRun creates a running [Run] between the named providers.
func NewRun(sequence int, source, target string, dryRun bool) *Run {
	now := time.Now()
	return &Run{
		sequence:  sequence,
		source:    source,
		target:    target,
		status:    RunRunning,
		dryRun:    dryRun,
		startedAt: now,
		createdAt: now,
		updatedAt: now,
	}
}

func (r *Run) ID() string              { return r.id }
func (r *Run) Sequence() int           { return r.sequence }
func (r *Run) Source() string          { return r.source }
func (r *Run) Target() string          { return r.target }
func (r *Run) Status() RunStatus       { return r.status }
func (r *Run) DryRun() bool            { return r.dryRun }
func (r *Run) Tally() Tally            { return r.tally }
func (r *Run) Message() string         { return r.message }
func (r *Run) StartedAt() time.Time    { return r.startedAt }
func (r *Run) CompletedAt() *time.Time { return r.completedAt }
func (r *Run) CreatedAt() time.Time    { return r.createdAt }
func (r *Run) UpdatedAt() time.Time    { return r.updatedAt }

func (r *Run) SetID(id string)             { r.id = id }
func (r *Run) SetSequence(seq int)         { r.sequence = seq }
func (r *Run) SetTally(t Tally)            { r.tally = t }
func (r *Run) SetStartedAt(t time.Time)    { r.startedAt = t }
func (r *Run) SetCreatedAt(t time.Time)    { r.createdAt = t }
func (r *Run) SetUpdatedAt(t time.Time)    { r.updatedAt = t }
func (r *Run) SetCompletedAt(t *time.Time) { r.completedAt = t }
func (r *Run) SetStatus(s RunStatus)       { r.status = s }
func (r *Run) SetMessage(msg string)       { r.message = msg }

// Finish marks the run as completed or failed and stamps the completion time.
func (r *Run) Finish(status RunStatus, tally Tally, message string) {
	now := time.Now()
	r.status = status
	r.tally = tally
	r.message = message
	r.completedAt = &now
	r.updatedAt = now
}

// Validate checks required fields.
func (r *Run) Validate() error {
	if r.source == "" {
		return fmt.Errorf("source is required")
	}
	if r.target == "" {
		return fmt.Errorf("target is required")
	}
	switch r.status {
	case RunRunning, RunCompleted, RunFailed:
	default:
		return fmt.Errorf("invalid status %q", r.status)
	}
	return nil
}

// RunItem is the persisted outcome for one entity within a [Run].
type RunItem struct {
	id        string
	runID     string
	pass      Pass
	kind      Kind
	label     string
	sourceID  string
	targetID  string
	outcome   Outcome
	message   string
	createdAt time.Time
}

// NewRunItem creates a [RunItem] for the given run.
func NewRunItem(runID string, pass Pass, kind Kind, label string, outcome Outcome) *RunItem {
	return &RunItem{
		runID:     runID,
		pass:      pass,
		kind:      kind,
		label:     label,
		outcome:   outcome,
		createdAt: time.Now(),
	}
}

func (i *RunItem) ID() string           { return i.id }
func (i *RunItem) RunID() string        { return i.runID }
func (i *RunItem) Pass() Pass           { return i.pass }
func (i *RunItem) Kind() Kind           { return i.kind }
func (i *RunItem) Label() string        { return i.label }
func (i *RunItem) SourceID() string     { return i.sourceID }
func (i *RunItem) TargetID() string     { return i.targetID }
func (i *RunItem) Outcome() Outcome     { return i.outcome }
func (i *RunItem) Message() string      { return i.message }
func (i *RunItem) CreatedAt() time.Time { return i.createdAt }
func (i *RunItem) UpdatedAt() time.Time { return i.createdAt }

func (i *RunItem) SetID(id string)          { i.id = id }
func (i *RunItem) SetSourceID(id string)    { i.sourceID = id }
func (i *RunItem) SetTargetID(id string)    { i.targetID = id }
func (i *RunItem) SetOutcome(o Outcome)     { i.outcome = o }
func (i *RunItem) SetMessage(msg string)    { i.message = msg }
func (i *RunItem) SetCreatedAt(t time.Time) { i.createdAt = t }

// Validate checks required fields.
func (i *RunItem) Validate() error {
	if i.runID == "" {
		return fmt.Errorf("run_id is required")
	}
	if i.label == "" {
		return fmt.Errorf("label is required")
	}
	if i.outcome == "" {
		return fmt.Errorf("outcome is required")
	}
	return nil
}
