// poautofill — fill gettext PO catalogs with DeepL machine translations.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/minios-linux/poautofill/config"
	"github.com/minios-linux/poautofill/deepl"
	"github.com/minios-linux/poautofill/i18n"
	"github.com/minios-linux/poautofill/translate"
	"github.com/spf13/cobra"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// entryDelay is the pause between two translated entries.
var entryDelay = translate.DefaultDelay

var (
	infoTag    = color.New(color.FgBlue).SprintFunc()
	successTag = color.New(color.FgGreen).SprintFunc()
	warningTag = color.New(color.Bold, color.FgYellow).SprintFunc()
	errorTag   = color.New(color.FgRed).SprintFunc()
)

// logOutput is where the log helpers write.
var logOutput io.Writer = os.Stderr

func logInfo(format string, args ...any) {
	fmt.Fprintf(logOutput, infoTag("[INFO]")+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(logOutput, successTag("[OK]")+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(logOutput, warningTag("[WARN]")+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(logOutput, errorTag("[ERROR]")+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	var (
		flags      config.Options
		configPath string
	)
	defaults := config.Default()

	root := &cobra.Command{
		Use:   "poautofill [flags] PO_FILE...",
		Short: i18n.T("Fill PO files with DeepL translations"),
		Long: i18n.T(`Fill the untranslated entries of the given PO files with DeepL translations.

Every entry filled this way is flagged fuzzy so that a human reviews it.
Entries that already have a translation are left untouched, so running the
command again only picks up what is still missing.

Files are processed one after another. A DeepL error stops the current file,
which is saved with the entries translated so far, and processing continues
with the next file.`),
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := resolveOptions(cmd, configPath, flags)
			if err != nil {
				return err
			}
			return runFill(cmd.Context(), opts, args, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := root.Flags()
	f.BoolVarP(&flags.Verbose, "verbose", "v", false, i18n.T("display progress bar"))
	f.StringVarP(&flags.AuthKey, "auth-key", "a", "", i18n.T("DeepL authentication key"))
	f.StringVarP(&flags.TargetLang, "target-lang", "t", defaults.TargetLang, i18n.T("target language"))
	f.StringVarP(&configPath, "config", "c", "", i18n.T("YAML configuration file"))
	f.StringVar(&flags.Endpoint, "endpoint", defaults.Endpoint, i18n.T("DeepL translate endpoint URL"))
	f.DurationVar(&flags.Timeout, "timeout", defaults.Timeout, i18n.T("timeout of a single DeepL request"))
	f.StringVar(&flags.Proxy, "proxy", "", i18n.T("HTTP/HTTPS proxy URL"))

	return root
}

// resolveOptions layers explicitly set flags over the config file (if any)
// and the defaults.
func resolveOptions(cmd *cobra.Command, configPath string, flags config.Options) (config.Options, error) {
	opts := config.Default()
	if configPath != "" {
		loaded, err := config.LoadFile(configPath)
		if err != nil {
			return opts, err
		}
		opts = loaded
	}

	changed := cmd.Flags().Changed
	if changed("auth-key") {
		opts.AuthKey = flags.AuthKey
	}
	if changed("target-lang") {
		opts.TargetLang = flags.TargetLang
	}
	if changed("verbose") {
		opts.Verbose = flags.Verbose
	}
	if changed("endpoint") {
		opts.Endpoint = flags.Endpoint
	}
	if changed("timeout") {
		opts.Timeout = flags.Timeout
	}
	if changed("proxy") {
		opts.Proxy = flags.Proxy
	}

	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

// runFill fills every catalog in order. Only a DeepL service error is
// absorbed per file; anything else ends the run.
func runFill(ctx context.Context, opts config.Options, paths []string, stdout, stderr io.Writer) error {
	client := deepl.New(deepl.Config{
		Endpoint:  opts.Endpoint,
		Timeout:   opts.Timeout,
		Proxy:     opts.Proxy,
		UserAgent: "poautofill/" + version,
	})
	filler := translate.NewFiller(client, translate.Options{
		AuthKey:    opts.AuthKey,
		TargetLang: opts.TargetLang,
		Verbose:    opts.Verbose,
		Progress:   stdout,
		Errors:     stderr,
		Delay:      entryDelay,
	})

	if opts.Verbose {
		logInfo(i18n.T("translating into %s via %s"), opts.TargetLang, client.Endpoint())
	}

	start := time.Now()
	aborted := 0
	for _, path := range paths {
		summary, err := filler.FillCatalog(ctx, path)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return fmt.Errorf(i18n.T("interrupted while filling %s: %w"), path, err)
			}
			return err
		}
		if summary.Aborted {
			aborted++
		}
		if opts.Verbose {
			reportSummary(summary)
		}
	}

	if opts.Verbose && len(paths) > 0 {
		logInfo(i18n.N("%d file processed in %s", "%d files processed in %s", len(paths)),
			len(paths), time.Since(start).Round(time.Second))
	}
	if aborted > 0 {
		logWarning(i18n.N("%d file stopped early on a DeepL error", "%d files stopped early on a DeepL error", aborted), aborted)
	}
	return nil
}

func reportSummary(s translate.Summary) {
	msg := fmt.Sprintf(i18n.T("%s: %d filled, %d already translated, %d still empty"),
		s.Path, s.Filled, s.Skipped, s.Remaining)
	if s.Aborted || s.Remaining > 0 {
		logWarning("%s", msg)
		return
	}
	logSuccess("%s", msg)
}

func main() {
	i18n.Init("")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logError("%v", err)
		stop()
		os.Exit(1)
	}
}
