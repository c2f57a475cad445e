// Package interactive presents the update lifecycle on a terminal.
package interactive

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Response represents the user's response to a prompt.
type Response int

const (
	ResponseYes  Response = iota // Accept
	ResponseNo                   // Decline
	ResponseAll                  // Accept this and every later prompt
	ResponseQuit                 // Close the prompt without deciding
)

// String returns the string representation of the Response.
func (r Response) String() string {
	switch r {
	case ResponseYes:
		return "yes"
	case ResponseNo:
		return "no"
	case ResponseAll:
		return "all"
	case ResponseQuit:
		return "quit"
	default:
		return fmt.Sprintf("Response(%d)", int(r))
	}
}

// Prompter reads y/n/a/q answers. Output may be written from several
// goroutines; the Prompter serialises it.
type Prompter struct {
	in      io.Reader
	scanner *bufio.Scanner

	outMu sync.Mutex
	out   io.Writer

	mu         sync.Mutex
	approveAll bool
}

// NewPrompter creates a prompter with stdin/stdout.
func NewPrompter() *Prompter {
	return NewPrompterWithIO(os.Stdin, os.Stdout)
}

// NewPrompterWithIO creates a prompter with custom input/output (for testing).
func NewPrompterWithIO(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		in:      in,
		out:     out,
		scanner: bufio.NewScanner(in),
	}
}

// IsTerminal checks if stdin is a terminal (TTY).
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// ApproveAll makes every later prompt answer yes without reading input.
func (p *Prompter) ApproveAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.approveAll = true
}

func (p *Prompter) printf(format string, args ...interface{}) {
	p.outMu.Lock()
	defer p.outMu.Unlock()
	_, _ = fmt.Fprintf(p.out, format, args...)
}

func (p *Prompter) println(args ...interface{}) {
	p.outMu.Lock()
	defer p.outMu.Unlock()
	_, _ = fmt.Fprintln(p.out, args...)
}

// prompt displays a question and reads the response. Only one prompt runs
// at a time.
func (p *Prompter) prompt(format string, args ...interface{}) Response {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.approveAll {
		return ResponseYes
	}

	p.printf(format, args...)
	p.printf(" [y/n/a/q] ")

	if !p.scanner.Scan() {
		return ResponseQuit
	}

	input := strings.ToLower(strings.TrimSpace(p.scanner.Text()))
	switch input {
	case "y", "yes":
		return ResponseYes
	case "n", "no":
		return ResponseNo
	case "a", "all":
		p.approveAll = true
		return ResponseAll
	case "q", "quit", "":
		return ResponseQuit
	default:
		// Default to no for invalid input
		p.println("Invalid response, skipping.")
		return ResponseNo
	}
}

// confirm asks a plain yes/no question. Anything but yes is no.
func (p *Prompter) confirm(question string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.approveAll {
		return true
	}

	p.printf("%s [y/n] ", question)
	if !p.scanner.Scan() {
		return false
	}
	input := strings.ToLower(strings.TrimSpace(p.scanner.Text()))
	return input == "y" || input == "yes"
}
