// Package ui has the small interactive pieces of the shinkai command line.
package ui

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/tcnksm/go-input"
)

// Confirm asks a yes/no question on rw until it gets an answer. An empty
// answer is no.
func Confirm(rw io.ReadWriter, query string) (bool, error) {
	ui := &input.UI{
		Writer: rw,
		Reader: rw,
	}

	answer, err := ui.Ask(query+" [y/N]", &input.Options{
		Default:     "n",
		HideDefault: true,
		Loop:        true,
		ValidateFunc: func(answer string) error {
			switch strings.ToLower(answer) {
			case "y", "yes", "n", "no":
				return nil
			default:
				return errors.New("please enter 'y' or 'n'")
			}
		},
	})
	if err != nil {
		return false, errors.Wrap(err, "failed to read answer")
	}

	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// ConfirmOnTTY asks on the controlling terminal.
func ConfirmOnTTY(query string) (bool, error) {
	tty, err := OpenTTY()
	if err != nil {
		return false, errors.Wrap(err, "no terminal to ask on")
	}
	defer func() {
		_ = tty.Close()
	}()
	return Confirm(tty, query)
}
