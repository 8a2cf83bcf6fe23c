package cmds

import (
	"github.com/mb0/glob"
	"github.com/pkg/errors"
)

// matchAny reports whether one of values matches the glob pattern. An empty
// pattern matches everything.
func matchAny(pattern string, values ...string) (bool, error) {
	if pattern == "" {
		return true, nil
	}
	for _, v := range values {
		matching, err := glob.Match(pattern, v)
		if err != nil {
			return false, errors.Wrapf(err, "invalid filter %q", pattern)
		}
		if matching {
			return true, nil
		}
	}
	return false, nil
}
