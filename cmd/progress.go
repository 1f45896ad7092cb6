package main

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/portable/internal/models"
	"github.com/desertthunder/portable/internal/tasks"
	"github.com/schollz/progressbar/v3"
)

// progressView renders [tasks.ProgressUpdate] events as one progress bar per pass.
type progressView struct {
	out    io.Writer
	logger *log.Logger
	bar    *progressbar.ProgressBar
}

// watch starts draining updates into a progress view. The returned stop func closes the
// channel and waits for the view to finish. With quiet set no bar is drawn.
func (r *Runner) watch(quiet bool) (chan tasks.ProgressUpdate, func()) {
	updates := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})

	out := r.progress
	if quiet {
		out = io.Discard
	}
	view := &progressView{out: out, logger: r.logger}

	go func() {
		defer close(done)
		for u := range updates {
			view.handle(u)
		}
		view.finish()
	}()

	return updates, func() {
		close(updates)
		<-done
	}
}

func (v *progressView) newBar(total int, description string) {
	v.finish()
	v.bar = progressbar.NewOptions(
		total,
		progressbar.OptionSetWriter(v.out),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionFullWidth(),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription(description),
		progressbar.OptionClearOnFinish(),
	)
}

func (v *progressView) finish() {
	if v.bar != nil {
		v.bar.Finish()
		v.bar = nil
	}
}

func (v *progressView) advance(step, total int) {
	if v.bar == nil || total <= 0 {
		return
	}
	if v.bar.GetMax() != total {
		v.bar.ChangeMax(total)
	}
	v.bar.Set(step)
}

// counts reports whether an item update advances the pass bar. Playlist passes also emit
// per-track items, which are counted within their playlist step instead.
func (v *progressView) counts(u tasks.ProgressUpdate) bool {
	item, ok := u.Data.(*models.RunItem)
	if !ok {
		return false
	}
	if u.Pass == models.PassPlaylists {
		return item.Kind() == models.KindPlaylist
	}
	return true
}

func (v *progressView) handle(u tasks.ProgressUpdate) {
	switch u.Phase {
	case tasks.FetchSource:
		v.logger.Debug(u.Message)
		if u.Total > 0 {
			v.newBar(u.Total, string(u.Pass))
		}
	case tasks.MigrateItem:
		v.logger.Debug(u.Message)
		if v.counts(u) {
			v.advance(u.Step, u.Total)
		}
	case tasks.ExportPlaylist:
		v.logger.Debug(u.Message)
		v.advance(u.Step, u.Total)
	case tasks.CreatePlaylist, tasks.AddTracks:
		v.logger.Debug(u.Message)
	case tasks.SkipPass:
		v.finish()
		v.logger.Warn(u.Message)
	case tasks.CompletePass, tasks.CompleteRun, tasks.CompleteExport:
		v.finish()
		v.logger.Info(u.Message)
	}
}
