package cmds

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	OutputYAML = "yaml"
	OutputJSON = "json"
)

// printValue writes v as indented JSON or as YAML. YAML keys follow the json
// tags of v, since the node types only carry those.
func printValue(w io.Writer, format string, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "could not encode output")
	}

	switch format {
	case OutputJSON:
		_, err = fmt.Fprintln(w, string(b))
		return err
	case OutputYAML, "":
		var generic interface{}
		if err := json.Unmarshal(b, &generic); err != nil {
			return errors.Wrap(err, "could not encode output")
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return errors.Wrap(err, "could not encode output")
		}
		return enc.Close()
	default:
		return errors.Errorf("unknown output format %q", format)
	}
}
