// Package translate fills the untranslated entries of PO catalogs with
// machine translations and flags them fuzzy for human review.
package translate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/minios-linux/poautofill/deepl"
	po "github.com/minios-linux/poautofill/pofile"
	"github.com/schollz/progressbar/v3"
)

// DefaultDelay is the pause after each translated entry.
const DefaultDelay = time.Second

// Translator turns one source text into its translation. An empty result
// with a nil error means the service produced no usable translation.
type Translator interface {
	Translate(ctx context.Context, text, authKey, targetLang string) (string, error)
}

// Options controls a fill pass.
type Options struct {
	// AuthKey is passed through to the translator untouched.
	AuthKey string
	// TargetLang is the target language code.
	TargetLang string
	// Verbose draws a progress bar on Progress.
	Verbose bool
	// Progress receives the progress bar (default os.Stdout).
	Progress io.Writer
	// Errors receives service error diagnostics (default os.Stderr).
	Errors io.Writer
	// Delay is the pause after each translated entry. Zero means DefaultDelay;
	// a negative value disables the pause.
	Delay time.Duration
}

func (o *Options) progressWriter() io.Writer {
	if !o.Verbose {
		return io.Discard
	}
	if o.Progress == nil {
		return os.Stdout
	}
	return o.Progress
}

func (o *Options) errorWriter() io.Writer {
	if o.Errors == nil {
		return os.Stderr
	}
	return o.Errors
}

func (o *Options) delay() time.Duration {
	switch {
	case o.Delay == 0:
		return DefaultDelay
	case o.Delay < 0:
		return 0
	default:
		return o.Delay
	}
}

// Summary reports what a fill pass did to one catalog.
type Summary struct {
	Path string
	// Total is the number of live entries walked.
	Total int
	// Skipped entries already had a translation.
	Skipped int
	// Filled entries received a translation, possibly empty.
	Filled int
	// Empty counts filled entries whose translation came back empty.
	Empty int
	// Remaining counts the live entries still untranslated after the pass,
	// including those it never reached.
	Remaining int
	// Aborted is set when a service error stopped the pass early.
	Aborted bool
}

// Filler fills catalogs one at a time.
type Filler struct {
	client Translator
	opts   Options
}

// NewFiller returns a Filler that translates through client.
func NewFiller(client Translator, opts Options) *Filler {
	return &Filler{client: client, opts: opts}
}

// FillCatalog translates every empty entry of the catalog at path and saves
// it back to path.
//
// A load failure is returned as is and nothing is written. Once loaded, the
// catalog is saved on every exit path. A *deepl.ServiceError stops the pass,
// is reported on the error writer and is not returned; any other error,
// including context cancellation, stops the pass and is returned.
func (f *Filler) FillCatalog(ctx context.Context, path string) (summary Summary, err error) {
	summary.Path = path

	catalog, err := po.ParseFile(path)
	if err != nil {
		return summary, err
	}

	defer func() {
		if saveErr := catalog.WriteFile(path); saveErr != nil {
			err = errors.Join(err, fmt.Errorf("saving %s: %w", path, saveErr))
		}
	}()

	err = f.fill(ctx, catalog, &summary)
	_, _, _, summary.Remaining = catalog.Stats()

	var svcErr *deepl.ServiceError
	if errors.As(err, &svcErr) {
		fmt.Fprintln(f.opts.errorWriter(), "Deepl Error:", svcErr.Reason)
		summary.Aborted = true
		err = nil
	}
	return summary, err
}

func (f *Filler) fill(ctx context.Context, catalog *po.File, summary *Summary) error {
	var entries []*po.Entry
	for _, e := range catalog.Entries {
		if !e.Obsolete {
			entries = append(entries, e)
		}
	}
	summary.Total = len(entries)

	tick, done := f.progress(summary.Path, len(entries))
	defer done()

	nplurals := catalog.NPlurals()
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !e.IsEmpty() {
			summary.Skipped++
			tick()
			continue
		}

		if err := f.fillEntry(ctx, e, nplurals); err != nil {
			return err
		}
		summary.Filled++
		if e.IsEmpty() {
			summary.Empty++
		}
		tick()

		if err := sleep(ctx, f.opts.delay()); err != nil {
			return err
		}
	}
	return nil
}

// fillEntry stores the translation of e and flags it fuzzy. Plural entries
// get the singular translation in msgstr[0] and the plural one in every
// other form.
func (f *Filler) fillEntry(ctx context.Context, e *po.Entry, nplurals int) error {
	singular, err := f.client.Translate(ctx, e.MsgID, f.opts.AuthKey, f.opts.TargetLang)
	if err != nil {
		return err
	}

	if !e.IsPlural() {
		e.MsgStr = singular
		e.SetFuzzy(true)
		return nil
	}

	plural := singular
	if nplurals > 1 {
		plural, err = f.client.Translate(ctx, e.MsgIDPlural, f.opts.AuthKey, f.opts.TargetLang)
		if err != nil {
			return err
		}
	}

	forms := make(map[int]string, nplurals)
	forms[0] = singular
	for i := 1; i < nplurals; i++ {
		forms[i] = plural
	}
	e.MsgStrPlural = forms
	e.SetFuzzy(true)
	return nil
}

// progress returns a tick func advancing the bar by one entry and a done
// func closing it. Both are no-ops for an empty catalog.
func (f *Filler) progress(label string, total int) (tick, done func()) {
	if total == 0 {
		return func() {}, func() {}
	}
	w := f.opts.progressWriter()
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(label),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
	)
	tick = func() { bar.Add(1) }
	done = func() {
		bar.Exit()
		fmt.Fprintln(w)
	}
	return tick, done
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
