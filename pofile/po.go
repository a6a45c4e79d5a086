// Package pofile reads and writes gettext PO catalogs.
//
// Parsing keeps every piece of an entry (comments, references, flags,
// context, plural forms, obsolete markers) so that a catalog written back
// differs from its source only in the fields a caller changed.
package pofile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// FuzzyFlag marks a translation that needs human review.
const FuzzyFlag = "fuzzy"

// Entry is one message of a catalog.
type Entry struct {
	// TranslatorComments are "# " lines.
	TranslatorComments []string
	// ExtractedComments are "#." lines.
	ExtractedComments []string
	// References are "#:" lines.
	References []string
	// Flags are the comma separated values of the "#," line.
	Flags []string
	// PreviousMsgCtxt, PreviousMsgID and PreviousMsgIDPlural are the "#|"
	// lines of a fuzzy entry ("#~|" on obsolete ones).
	PreviousMsgCtxt     string
	PreviousMsgID       string
	PreviousMsgIDPlural string

	MsgCtxt      string
	MsgID        string
	MsgIDPlural  string
	MsgStr       string
	MsgStrPlural map[int]string

	// Obsolete marks "#~" entries.
	Obsolete bool
}

// IsPlural reports whether the entry carries a msgid_plural.
func (e *Entry) IsPlural() bool {
	return e.MsgIDPlural != ""
}

// IsEmpty reports whether the entry has no translation at all. A plural
// entry is empty only when every msgstr[N] is empty.
func (e *Entry) IsEmpty() bool {
	if e.IsPlural() {
		for _, s := range e.MsgStrPlural {
			if s != "" {
				return false
			}
		}
		return true
	}
	return e.MsgStr == ""
}

// HasFlag reports whether flag is set on the entry.
func (e *Entry) HasFlag(flag string) bool {
	for _, f := range e.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// AddFlag appends flag unless it is already present.
func (e *Entry) AddFlag(flag string) {
	if !e.HasFlag(flag) {
		e.Flags = append(e.Flags, flag)
	}
}

// RemoveFlag drops every occurrence of flag.
func (e *Entry) RemoveFlag(flag string) {
	kept := e.Flags[:0]
	for _, f := range e.Flags {
		if f != flag {
			kept = append(kept, f)
		}
	}
	e.Flags = kept
}

// IsFuzzy reports whether the entry is marked fuzzy.
func (e *Entry) IsFuzzy() bool {
	return e.HasFlag(FuzzyFlag)
}

// SetFuzzy adds or removes the fuzzy flag.
func (e *Entry) SetFuzzy(fuzzy bool) {
	if fuzzy {
		e.AddFlag(FuzzyFlag)
	} else {
		e.RemoveFlag(FuzzyFlag)
	}
}

// File is a parsed catalog.
type File struct {
	// Header is the metadata entry (msgid ""), nil when the catalog has none.
	Header *Entry
	// Entries are the messages in file order.
	Entries []*Entry
}

// HeaderField returns the value of a header field, matched case-insensitively.
func (f *File) HeaderField(name string) string {
	if f.Header == nil {
		return ""
	}
	for _, line := range strings.Split(f.Header.MsgStr, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if ok && strings.EqualFold(strings.TrimSpace(key), name) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// NPlurals returns the nplurals value of the Plural-Forms header, or 2 when
// the header is missing or unreadable.
func (f *File) NPlurals() int {
	forms := f.HeaderField("Plural-Forms")
	for _, part := range strings.Split(forms, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || strings.TrimSpace(key) != "nplurals" {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && n > 0 {
			return n
		}
	}
	return 2
}

// Stats counts live (non-obsolete) entries.
func (f *File) Stats() (total, translated, fuzzy, untranslated int) {
	for _, e := range f.Entries {
		if e.Obsolete {
			continue
		}
		total++
		switch {
		case e.IsEmpty():
			untranslated++
		case e.IsFuzzy():
			fuzzy++
		default:
			translated++
		}
	}
	return
}

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

type parser struct {
	file      *File
	current   *Entry
	field     string // keyword the next continuation line extends
	plural    int    // index of the msgstr[N] being extended
	prevField string // "#|" keyword the next "#|" string extends
}

func (p *parser) entry() *Entry {
	if p.current == nil {
		p.current = &Entry{MsgStrPlural: make(map[int]string)}
	}
	return p.current
}

func (p *parser) flush() {
	e := p.current
	p.current = nil
	p.field = ""
	p.prevField = ""
	if e == nil {
		return
	}
	if e.MsgID == "" && e.MsgCtxt == "" && !e.Obsolete && p.file.Header == nil && len(p.file.Entries) == 0 {
		p.file.Header = e
		return
	}
	p.file.Entries = append(p.file.Entries, e)
}

func (p *parser) comment(line string) {
	e := p.entry()
	switch {
	case strings.HasPrefix(line, "#:"):
		e.References = append(e.References, strings.TrimSpace(line[2:]))
	case strings.HasPrefix(line, "#,"):
		for _, flag := range strings.Split(line[2:], ",") {
			if flag = strings.TrimSpace(flag); flag != "" {
				e.Flags = append(e.Flags, flag)
			}
		}
	case strings.HasPrefix(line, "#."):
		e.ExtractedComments = append(e.ExtractedComments, strings.TrimSpace(line[2:]))
	case strings.HasPrefix(line, "#|"):
		p.previous(e, strings.TrimSpace(line[2:]))
	default:
		e.TranslatorComments = append(e.TranslatorComments, strings.TrimPrefix(line[1:], " "))
	}
}

func (p *parser) previous(e *Entry, line string) {
	if strings.HasPrefix(line, `"`) {
		if field := e.previousField(p.prevField); field != nil {
			*field += unquote(line)
		}
		return
	}
	keyword, value, _ := strings.Cut(line, " ")
	if field := e.previousField(keyword); field != nil {
		*field = unquote(value)
		p.prevField = keyword
	}
}

func (e *Entry) previousField(keyword string) *string {
	switch keyword {
	case "msgctxt":
		return &e.PreviousMsgCtxt
	case "msgid":
		return &e.PreviousMsgID
	case "msgid_plural":
		return &e.PreviousMsgIDPlural
	}
	return nil
}

// startsEntry reports whether line opens a new entry without a blank line
// before it: a comment, msgctxt or msgid right after a msgstr.
func (p *parser) startsEntry(line string) bool {
	if p.field != "msgstr" && p.field != "msgstr[]" {
		return false
	}
	if strings.HasPrefix(line, "#") {
		return true
	}
	keyword, _, _ := strings.Cut(line, " ")
	return keyword == "msgctxt" || keyword == "msgid"
}

func (p *parser) keyword(line string) error {
	e := p.entry()
	keyword, value, _ := strings.Cut(line, " ")
	switch {
	case keyword == "msgctxt":
		e.MsgCtxt = unquote(value)
	case keyword == "msgid":
		e.MsgID = unquote(value)
	case keyword == "msgid_plural":
		e.MsgIDPlural = unquote(value)
	case keyword == "msgstr":
		e.MsgStr = unquote(value)
	case strings.HasPrefix(keyword, "msgstr[") && strings.HasSuffix(keyword, "]"):
		idx, err := strconv.Atoi(keyword[len("msgstr[") : len(keyword)-1])
		if err != nil || idx < 0 {
			return fmt.Errorf("invalid plural index in %q", keyword)
		}
		e.MsgStrPlural[idx] = unquote(value)
		p.plural = idx
		keyword = "msgstr[]"
	default:
		return fmt.Errorf("unknown keyword %q", keyword)
	}
	p.field = keyword
	return nil
}

func (p *parser) continuation(line string) error {
	e := p.entry()
	val := unquote(line)
	switch p.field {
	case "msgctxt":
		e.MsgCtxt += val
	case "msgid":
		e.MsgID += val
	case "msgid_plural":
		e.MsgIDPlural += val
	case "msgstr":
		e.MsgStr += val
	case "msgstr[]":
		e.MsgStrPlural[p.plural] += val
	default:
		return fmt.Errorf("string continuation without a keyword")
	}
	return nil
}

// Parse reads a catalog.
func Parse(r io.Reader) (*File, error) {
	p := &parser{file: &File{}}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			p.flush()
			continue
		}

		obsolete := false
		if rest, ok := strings.CutPrefix(trimmed, "#~"); ok {
			obsolete = true
			trimmed = strings.TrimSpace(rest)
			if strings.HasPrefix(trimmed, "|") {
				trimmed = "#" + trimmed
			}
		}
		if p.startsEntry(trimmed) {
			p.flush()
		}
		if obsolete {
			p.entry().Obsolete = true
			if trimmed == "" {
				continue
			}
		}

		var err error
		switch {
		case strings.HasPrefix(trimmed, "#"):
			p.comment(trimmed)
		case strings.HasPrefix(trimmed, `"`):
			err = p.continuation(trimmed)
		default:
			err = p.keyword(trimmed)
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
	}
	p.flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading PO file: %w", err)
	}
	return p.file, nil
}

// ParseFile reads a catalog from disk.
func ParseFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	catalog, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return catalog, nil
}

// ---------------------------------------------------------------------------
// Writing
// ---------------------------------------------------------------------------

// Write serializes the catalog, entries separated by blank lines.
func (f *File) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	first := true
	emit := func(e *Entry) {
		if !first {
			bw.WriteByte('\n')
		}
		first = false
		writeEntry(bw, e)
	}

	if f.Header != nil {
		emit(f.Header)
	}
	for _, e := range f.Entries {
		emit(e)
	}
	return bw.Flush()
}

// WriteFile writes the catalog to path, keeping the permissions of a file
// already there. The catalog goes to a temporary file in the same directory
// first and is renamed over path only once fully written.
func (f *File) WriteFile(path string) error {
	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if err := f.Write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return os.Rename(tmpPath, path)
}

func writeEntry(w *bufio.Writer, e *Entry) {
	for _, c := range e.TranslatorComments {
		if c == "" {
			w.WriteString("#\n")
		} else {
			fmt.Fprintf(w, "# %s\n", c)
		}
	}
	for _, c := range e.ExtractedComments {
		fmt.Fprintf(w, "#. %s\n", c)
	}
	for _, ref := range e.References {
		fmt.Fprintf(w, "#: %s\n", ref)
	}
	if len(e.Flags) > 0 {
		fmt.Fprintf(w, "#, %s\n", strings.Join(e.Flags, ", "))
	}
	prefix, prevPrefix := "", "#| "
	if e.Obsolete {
		prefix, prevPrefix = "#~ ", "#~| "
	}
	if e.PreviousMsgCtxt != "" {
		writeField(w, prevPrefix, "msgctxt", e.PreviousMsgCtxt)
	}
	if e.PreviousMsgID != "" {
		writeField(w, prevPrefix, "msgid", e.PreviousMsgID)
	}
	if e.PreviousMsgIDPlural != "" {
		writeField(w, prevPrefix, "msgid_plural", e.PreviousMsgIDPlural)
	}
	if e.MsgCtxt != "" {
		writeField(w, prefix, "msgctxt", e.MsgCtxt)
	}
	writeField(w, prefix, "msgid", e.MsgID)
	if !e.IsPlural() {
		writeField(w, prefix, "msgstr", e.MsgStr)
		return
	}

	writeField(w, prefix, "msgid_plural", e.MsgIDPlural)
	if len(e.MsgStrPlural) == 0 {
		writeField(w, prefix, "msgstr[0]", "")
		return
	}
	indices := make([]int, 0, len(e.MsgStrPlural))
	for idx := range e.MsgStrPlural {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	for _, idx := range indices {
		writeField(w, prefix, fmt.Sprintf("msgstr[%d]", idx), e.MsgStrPlural[idx])
	}
}

// writeField writes keyword and value, splitting multiline values after
// each "\n" the way msgcat does.
func writeField(w *bufio.Writer, prefix, keyword, value string) {
	if !strings.Contains(strings.TrimSuffix(value, "\n"), "\n") {
		fmt.Fprintf(w, "%s%s %s\n", prefix, keyword, quote(value))
		return
	}

	fmt.Fprintf(w, "%s%s \"\"\n", prefix, keyword)
	for _, line := range strings.SplitAfter(value, "\n") {
		if line != "" {
			fmt.Fprintf(w, "%s%s\n", prefix, quote(line))
		}
	}
}

var quoter = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\t", `\t`,
	"\r", `\r`,
)

func quote(s string) string {
	return `"` + quoter.Replace(s) + `"`
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return s
	}
	s = s[1 : len(s)-1]

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\\', '"':
			b.WriteByte(s[i])
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
