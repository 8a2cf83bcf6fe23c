//go:build windows

package ui

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

type console struct {
	in  *os.File
	out *os.File
}

func (c *console) Read(p []byte) (int, error)  { return c.in.Read(p) }
func (c *console) Write(p []byte) (int, error) { return c.out.Write(p) }

func (c *console) Close() error {
	errIn := c.in.Close()
	errOut := c.out.Close()
	if errIn != nil {
		return errIn
	}
	return errOut
}

func OpenTTY() (io.ReadWriteCloser, error) {
	in, err := os.OpenFile("CONIN$", os.O_RDWR, 0)
	if err != nil {
		return nil, errors.Wrap(err, "could not open console input")
	}
	out, err := os.OpenFile("CONOUT$", os.O_RDWR, 0)
	if err != nil {
		_ = in.Close()
		return nil, errors.Wrap(err, "could not open console output")
	}
	return &console{in: in, out: out}, nil
}
