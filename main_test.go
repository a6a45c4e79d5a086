package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/minios-linux/poautofill/config"
	po "github.com/minios-linux/poautofill/pofile"
	"github.com/spf13/cobra"
)

// fakeDeepL answers with "<text> (<lang>)" and rejects the texts listed in
// forbidden with 403.
type fakeDeepL struct {
	mu        sync.Mutex
	forbidden map[string]bool
	texts     []string
	keys      []string
}

func (f *fakeDeepL) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	text := r.PostForm.Get("text")

	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.keys = append(f.keys, r.PostForm.Get("auth_key"))
	f.mu.Unlock()

	if f.forbidden[text] {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"translations":[{"text":"` + text + ` (` + r.PostForm.Get("target_lang") + `)"}]}`))
}

func startFakeDeepL(t *testing.T, forbidden ...string) (*fakeDeepL, string) {
	t.Helper()
	fake := &fakeDeepL{forbidden: make(map[string]bool)}
	for _, text := range forbidden {
		fake.forbidden[text] = true
	}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return fake, srv.URL
}

func noDelay(t *testing.T) {
	t.Helper()
	old := entryDelay
	entryDelay = -1
	t.Cleanup(func() { entryDelay = old })
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := logOutput
	logOutput = &buf
	t.Cleanup(func() { logOutput = old })
	return &buf
}

func writePO(t *testing.T, dir, name string, msgids ...string) string {
	t.Helper()
	var b strings.Builder
	for i, id := range msgids {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("msgid \"" + id + "\"\nmsgstr \"\"\n")
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func msgstrs(t *testing.T, path string) []string {
	t.Helper()
	f, err := po.ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile(%s): %v", path, err)
	}
	var out []string
	for _, e := range f.Entries {
		out = append(out, e.MsgStr)
	}
	return out
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestRootFillsEveryFileInOrder(t *testing.T) {
	noDelay(t)
	captureLog(t)
	fake, url := startFakeDeepL(t)
	dir := t.TempDir()
	first := writePO(t, dir, "a.po", "One", "Two")
	second := writePO(t, dir, "b.po", "Three")

	_, _, err := execute(t, "--endpoint", url, "-a", "key:fx", "-t", "DE", first, second)
	if err != nil {
		t.Fatalf("execute error: %v", err)
	}

	if got := strings.Join(fake.texts, ","); got != "One,Two,Three" {
		t.Fatalf("request order = %s", got)
	}
	if fake.keys[0] != "key:fx" {
		t.Fatalf("auth_key = %q", fake.keys[0])
	}
	if got := msgstrs(t, first); got[0] != "One (DE)" || got[1] != "Two (DE)" {
		t.Fatalf("a.po msgstrs = %q", got)
	}
	if got := msgstrs(t, second); got[0] != "Three (DE)" {
		t.Fatalf("b.po msgstrs = %q", got)
	}
}

func TestRootServiceErrorMovesToNextFile(t *testing.T) {
	noDelay(t)
	captureLog(t)
	fake, url := startFakeDeepL(t, "B")
	dir := t.TempDir()
	first := writePO(t, dir, "a.po", "A", "B", "C")
	second := writePO(t, dir, "b.po", "D")

	_, stderr, err := execute(t, "--endpoint", url, first, second)
	if err != nil {
		t.Fatalf("execute error: %v", err)
	}
	if stderr != "Deepl Error: Forbidden\n" {
		t.Fatalf("stderr = %q, want Deepl Error line", stderr)
	}
	if got := strings.Join(fake.texts, ","); got != "A,B,D" {
		t.Fatalf("requests = %s, want A,B,D", got)
	}

	if got := msgstrs(t, first); got[0] != "A (FR)" || got[1] != "" || got[2] != "" {
		t.Fatalf("a.po msgstrs = %q", got)
	}
	if got := msgstrs(t, second); got[0] != "D (FR)" {
		t.Fatalf("b.po msgstrs = %q", got)
	}
}

func TestRootLoadFailureStopsRun(t *testing.T) {
	noDelay(t)
	captureLog(t)
	fake, url := startFakeDeepL(t)
	dir := t.TempDir()
	next := writePO(t, dir, "b.po", "Later")

	_, _, err := execute(t, "--endpoint", url, filepath.Join(dir, "missing.po"), next)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("execute error = %v, want not-exist", err)
	}
	if len(fake.texts) != 0 {
		t.Fatalf("requests after load failure: %v", fake.texts)
	}
	if got := msgstrs(t, next); got[0] != "" {
		t.Fatalf("b.po was processed: %q", got)
	}
}

func TestRootWithoutFilesDoesNothing(t *testing.T) {
	captureLog(t)
	if _, _, err := execute(t); err != nil {
		t.Fatalf("execute without files: %v", err)
	}
}

func TestRootVerboseShowsProgressAndSummary(t *testing.T) {
	noDelay(t)
	logs := captureLog(t)
	_, url := startFakeDeepL(t)
	path := writePO(t, t.TempDir(), "fr.po", "Hello")

	stdout, _, err := execute(t, "--endpoint", url, "-v", path)
	if err != nil {
		t.Fatalf("execute error: %v", err)
	}
	if !strings.Contains(stdout, path) {
		t.Fatalf("stdout %q has no progress for %s", stdout, path)
	}
	if !strings.Contains(logs.String(), "1 filled") {
		t.Fatalf("log %q has no summary", logs.String())
	}
	if !strings.Contains(logs.String(), url) {
		t.Fatalf("log %q does not name the endpoint", logs.String())
	}
}

func TestRunFillInterruptedKeepsCause(t *testing.T) {
	noDelay(t)
	captureLog(t)
	fake, url := startFakeDeepL(t)
	path := writePO(t, t.TempDir(), "fr.po", "Hello")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts := config.Default()
	opts.Endpoint = url

	err := runFill(ctx, opts, []string{path}, io.Discard, io.Discard)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("runFill error = %v, want context.Canceled in chain", err)
	}
	if !strings.Contains(err.Error(), path) {
		t.Fatalf("runFill error %q does not name %s", err, path)
	}
	if len(fake.texts) != 0 {
		t.Fatalf("requests after cancellation: %v", fake.texts)
	}
}

func TestResolveOptionsPrecedence(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "poautofill.yaml")
	if err := os.WriteFile(cfgPath, []byte("auth_key: from-file\ntarget_lang: ES\ntimeout: 5s\n"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var got config.Options
	cmd := newRootCmd()
	cmd.RunE = nil
	cmd.Run = func(c *cobra.Command, args []string) {
		configPath, _ := c.Flags().GetString("config")
		var flags config.Options
		flags.TargetLang, _ = c.Flags().GetString("target-lang")
		flags.AuthKey, _ = c.Flags().GetString("auth-key")
		opts, err := resolveOptions(c, configPath, flags)
		if err != nil {
			t.Fatalf("resolveOptions error: %v", err)
		}
		got = opts
	}
	cmd.SetArgs([]string{"--config", cfgPath, "-t", "IT"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute error: %v", err)
	}

	if got.AuthKey != "from-file" {
		t.Fatalf("AuthKey = %q, want from-file", got.AuthKey)
	}
	if got.TargetLang != "IT" {
		t.Fatalf("TargetLang = %q, want IT (flag beats file)", got.TargetLang)
	}
	if got.Timeout != 5*time.Second {
		t.Fatalf("Timeout = %s, want 5s", got.Timeout)
	}
}

func TestRootRejectsInvalidOptions(t *testing.T) {
	captureLog(t)
	path := writePO(t, t.TempDir(), "fr.po", "Hello")

	_, _, err := execute(t, "--target-lang", "", path)
	if err == nil || !strings.Contains(err.Error(), "target language") {
		t.Fatalf("execute error = %v, want target language error", err)
	}
	if got := msgstrs(t, path); got[0] != "" {
		t.Fatalf("catalog touched despite invalid options: %q", got)
	}
}
