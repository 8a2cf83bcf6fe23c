package archive

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/go-go-golems/shinkai/pkg/conversation"
)

// DefaultPathTemplate lays exports out by day.
const DefaultPathTemplate = `{{.Year}}/{{.Month}}/{{.Day}}/{{.Time.Format "150405"}}-{{.Slug}}.json`

// Document is the JSON form of an exported conversation.
type Document struct {
	InboxID    string                 `json:"inbox_id"`
	ExportedAt time.Time              `json:"exported_at"`
	Messages   []conversation.Message `json:"messages"`
}

// ExportJSON writes an indented Document for msgs to path, creating the
// parent directories.
func ExportJSON(fs afero.Fs, path string, inboxID string, msgs []conversation.Message) error {
	if msgs == nil {
		msgs = []conversation.Message{}
	}
	doc := Document{
		InboxID:    inboxID,
		ExportedAt: time.Now().UTC(),
		Messages:   msgs,
	}

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "could not marshal conversation")
	}

	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "could not create directory for %s", path)
	}
	if err := afero.WriteFile(fs, path, b, 0644); err != nil {
		return errors.Wrapf(err, "could not write %s", path)
	}
	return nil
}

// ImportJSON reads a Document written by ExportJSON.
func ImportJSON(fs afero.Fs, path string) (*Document, error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read %s", path)
	}

	doc := &Document{}
	if err := json.Unmarshal(b, doc); err != nil {
		return nil, errors.Wrapf(err, "could not parse %s", path)
	}
	if doc.InboxID == "" {
		return nil, errors.Errorf("%s: missing inbox_id", path)
	}
	return doc, nil
}

type pathData struct {
	Year    string
	Month   string
	Day     string
	Time    time.Time
	InboxID string
	Slug    string
}

// Slug turns an inbox id into something usable as a file name.
func Slug(inboxID string) string {
	s := strings.ReplaceAll(inboxID, "::", "_")
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		default:
			return '-'
		}
	}, s)
	return strings.Trim(s, "-.")
}

// PathFor expands a path template for an export of inboxID at t. Sprig
// functions are available in the template.
func PathFor(tmpl string, inboxID string, t time.Time) (string, error) {
	if tmpl == "" {
		tmpl = DefaultPathTemplate
	}
	parsed, err := template.New("path").Funcs(sprig.TxtFuncMap()).Parse(tmpl)
	if err != nil {
		return "", errors.Wrap(err, "invalid path template")
	}

	data := pathData{
		Year:    t.Format("2006"),
		Month:   t.Format("01"),
		Day:     t.Format("02"),
		Time:    t,
		InboxID: inboxID,
		Slug:    Slug(inboxID),
	}

	var buf bytes.Buffer
	if err := parsed.Execute(&buf, data); err != nil {
		return "", errors.Wrap(err, "could not expand path template")
	}
	ret := strings.TrimSpace(buf.String())
	if ret == "" {
		return "", errors.New("path template expanded to an empty path")
	}
	return filepath.Clean(ret), nil
}
