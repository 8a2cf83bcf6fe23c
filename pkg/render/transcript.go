// Package render formats conversation views for terminals and files.
package render

import (
	"io"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/pkg/errors"

	"github.com/go-go-golems/shinkai/pkg/conversation"
)

const transcriptTemplate = `
{{- define "sender" -}}
{{- $opts := index . 0 -}}
{{- with (index . 1) -}}
{{- if and .IsLocal $opts.LocalName }}{{ $opts.LocalName }}{{ else }}{{ .Sender }}{{ end -}}
{{- end -}}
{{- end -}}

{{- range .Messages -}}
{{- if $.Concise -}}
{{ template "sender" (list $ .) }}: {{ .Content | trim }}
{{ else -}}
[{{ dateInZone "2006-01-02 15:04:05" .Timestamp "UTC" }}] {{ template "sender" (list $ .) }}
{{ .Content | trim | indent 2 }}

{{ end -}}
{{- end -}}
`

var transcript = template.Must(template.New("transcript").Funcs(sprig.TxtFuncMap()).Parse(transcriptTemplate))

type TranscriptOptions struct {
	// Concise prints one line per message, without timestamps.
	Concise bool
	// LocalName replaces the sender of local messages when set.
	LocalName string
}

type transcriptData struct {
	Concise   bool
	LocalName string
	Messages  []conversation.Message
}

// Transcript writes the messages of v to w, oldest first.
func Transcript(w io.Writer, v conversation.View, opts TranscriptOptions) error {
	data := transcriptData{
		Concise:   opts.Concise,
		LocalName: opts.LocalName,
		Messages:  v.Messages,
	}
	if err := transcript.Execute(w, data); err != nil {
		return errors.Wrap(err, "could not render transcript")
	}
	return nil
}
