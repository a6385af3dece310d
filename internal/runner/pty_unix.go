//go:build !windows

package runner

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
)

// unixPTY wraps the master side of a creack/pty pseudo-terminal.
type unixPTY struct {
	file *os.File
}

func (p *unixPTY) Read(b []byte) (int, error)  { return p.file.Read(b) }
func (p *unixPTY) Write(b []byte) (int, error) { return p.file.Write(b) }
func (p *unixPTY) Close() error                { return p.file.Close() }
func (p *unixPTY) Fd() uintptr                 { return p.file.Fd() }

type unixStarter struct{}

func (s *unixStarter) Start(cmd *exec.Cmd) (PTY, error) {
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return nil, err
	}
	return &unixPTY{file: ptmx}, nil
}

type unixSignaler struct{}

func (s *unixSignaler) Terminate(cmd *exec.Cmd) error {
	if cmd != nil && cmd.Process != nil {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	return nil
}

func (s *unixSignaler) Kill(cmd *exec.Cmd) error {
	if cmd != nil && cmd.Process != nil {
		return cmd.Process.Kill()
	}
	return nil
}

// NewPTYStarter returns the platform PTYStarter.
func NewPTYStarter() PTYStarter { return &unixStarter{} }

// NewProcessSignaler returns the platform ProcessSignaler.
func NewProcessSignaler() ProcessSignaler { return &unixSignaler{} }
