//go:build windows

package runner

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/UserExistsError/conpty"
)

// windowsPTY wraps a ConPTY session.
type windowsPTY struct {
	cpty   *conpty.ConPty
	reader io.Reader
	writer io.Writer
}

func (p *windowsPTY) Read(b []byte) (int, error)  { return p.reader.Read(b) }
func (p *windowsPTY) Write(b []byte) (int, error) { return p.writer.Write(b) }
func (p *windowsPTY) Close() error                { return p.cpty.Close() }
func (p *windowsPTY) Fd() uintptr                 { return 0 }

type windowsStarter struct{}

func (s *windowsStarter) Start(cmd *exec.Cmd) (PTY, error) {
	cmdLine := cmd.Path
	if len(cmd.Args) > 1 {
		cmdLine = strings.Join(cmd.Args, " ")
	}

	workDir := cmd.Dir
	if workDir == "" {
		var err error
		workDir, err = os.Getwd()
		if err != nil {
			workDir = os.Getenv("USERPROFILE")
		}
	}

	cpty, err := conpty.Start(cmdLine, conpty.ConPtyDimensions(80, 24), conpty.ConPtyWorkDir(workDir))
	if err != nil {
		return nil, fmt.Errorf("starting conpty: %w", err)
	}
	return &windowsPTY{cpty: cpty, reader: cpty, writer: cpty}, nil
}

type windowsSignaler struct{}

func (s *windowsSignaler) Terminate(cmd *exec.Cmd) error {
	if cmd != nil && cmd.Process != nil {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	return nil
}

func (s *windowsSignaler) Kill(cmd *exec.Cmd) error {
	if cmd != nil && cmd.Process != nil {
		return cmd.Process.Kill()
	}
	return nil
}

// NewPTYStarter returns the platform PTYStarter.
func NewPTYStarter() PTYStarter { return &windowsStarter{} }

// NewProcessSignaler returns the platform ProcessSignaler.
func NewProcessSignaler() ProcessSignaler { return &windowsSignaler{} }
