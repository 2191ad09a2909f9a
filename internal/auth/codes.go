package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"sjsage522/menuscout/pkg/errors"

	"golang.org/x/term"
)

var (
	ErrCodeCancelled = stderrors.New("code entry cancelled")
	ErrCodeTimeout   = stderrors.New("code entry timed out")
	ErrEmptyCode     = stderrors.New("empty code")
)

// CodeProvider supplies the one-time code of a secondary auth challenge
type CodeProvider interface {
	RequestCode(ctx context.Context, timeout time.Duration) (string, error)
}

// StaticCodeProvider returns a fixed code, e.g. from the environment
type StaticCodeProvider struct {
	Code string
}

// RequestCode implements CodeProvider
func (p StaticCodeProvider) RequestCode(ctx context.Context, timeout time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	code := strings.TrimSpace(p.Code)
	if code == "" {
		return "", ErrEmptyCode
	}
	return code, nil
}

// TerminalCodeProvider asks for the code on the controlling terminal,
// echoing '*' for each accepted character.
type TerminalCodeProvider struct {
	In     *os.File
	Out    io.Writer
	Prompt string
}

// NewTerminalCodeProvider reads from stdin and prompts on stderr
func NewTerminalCodeProvider() *TerminalCodeProvider {
	return &TerminalCodeProvider{
		In:     os.Stdin,
		Out:    os.Stderr,
		Prompt: "Verification code (SMS/e-mail): ",
	}
}

// RequestCode implements CodeProvider
func (p *TerminalCodeProvider) RequestCode(ctx context.Context, timeout time.Duration) (string, error) {
	fd := int(p.In.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.NewAuthentication("code entry needs an interactive terminal", nil)
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return "", errors.NewAuthentication("terminal raw mode", err)
	}
	defer term.Restore(fd, state)

	fmt.Fprint(p.Out, p.Prompt)

	type entry struct {
		code string
		err  error
	}
	// The reader stays blocked on stdin after a timeout; the process is
	// about to give up on the login at that point anyway.
	done := make(chan entry, 1)
	go func() {
		code, err := readMasked(p.In, p.Out)
		done <- entry{code, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case e := <-done:
		fmt.Fprint(p.Out, "\r\n")
		return e.code, e.err
	case <-ctx.Done():
		fmt.Fprint(p.Out, "\r\n")
		return "", ctx.Err()
	case <-timer.C:
		fmt.Fprint(p.Out, "\r\n")
		return "", ErrCodeTimeout
	}
}

// readMasked reads a raw-mode line of ASCII letters and digits. Other
// bytes are ignored, backspace edits and Ctrl+C cancels.
func readMasked(r io.Reader, echo io.Writer) (string, error) {
	var code []byte
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n == 0 {
			if err == nil {
				continue
			}
			if len(code) > 0 {
				return string(code), nil
			}
			return "", ErrCodeCancelled
		}

		switch c := buf[0]; {
		case c == '\r' || c == '\n':
			if len(code) == 0 {
				return "", ErrEmptyCode
			}
			return string(code), nil
		case c == 3:
			return "", ErrCodeCancelled
		case c == 127 || c == 8:
			if len(code) > 0 {
				code = code[:len(code)-1]
				fmt.Fprint(echo, "\b \b")
			}
		case (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
			code = append(code, c)
			fmt.Fprint(echo, "*")
		}
	}
}
