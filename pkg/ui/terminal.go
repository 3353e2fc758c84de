package ui

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Logo is printed at the top of interactive runs
const Logo = `
  ╦ ╦╔═╗╔═╗╔═╗╔═╗╔═╗╦═╗╔═╗╔═╗╔═╗╦═╗
  ╠═╣║ ║║ ║╠═╝╚═╗║  ╠╦╝╠═╣╠═╝║╣ ╠╦╝
  ╩ ╩╚═╝╚═╝╩  ╚═╝╚═╝╩╚═╩ ╩╩  ╚═╝╩╚═
  stats.nba.com bulk fetcher
`

// Color functions for terminal output. They are identity functions until
// EnableColor is called.
var (
	Cyan    = plain
	Yellow  = plain
	Red     = plain
	Green   = plain
	Magenta = plain
	Dim     = plain
)

func plain(text string) string { return text }

// colorize returns a function that wraps text with ANSI color codes
func colorize(colorString string) func(string) string {
	return func(text string) string {
		return fmt.Sprintf(colorString, text)
	}
}

// EnableColor switches the color functions to ANSI escapes
func EnableColor() {
	Cyan = colorize("\033[36m%s\033[0m")
	Yellow = colorize("\033[33m%s\033[0m")
	Red = colorize("\033[31m%s\033[0m")
	Green = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim = colorize("\033[2m%s\033[0m")
}

// IsTerminal reports whether w is an interactive terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Printer writes operator messages. Quiet suppresses everything except
// errors.
type Printer struct {
	Out   io.Writer
	Quiet bool
}

// NewPrinter returns a printer for w and enables color when w is a terminal
func NewPrinter(w io.Writer, quiet bool) *Printer {
	if IsTerminal(w) {
		EnableColor()
	}
	return &Printer{Out: w, Quiet: quiet}
}

// Logo prints the logo
func (p *Printer) Logo() {
	if p.Quiet {
		return
	}
	fmt.Fprint(p.Out, Cyan(Logo))
}

// Error prints an error message in red
func (p *Printer) Error(msg string, err error) {
	if err != nil {
		msg += ": " + err.Error()
	}
	fmt.Fprintln(p.Out, Red(msg))
}

// Success prints a success message in green
func (p *Printer) Success(msg string) {
	if p.Quiet {
		return
	}
	fmt.Fprintln(p.Out, Green(msg))
}

// Info prints a label and value
func (p *Printer) Info(label, value string) {
	if p.Quiet {
		return
	}
	fmt.Fprintf(p.Out, "%s: %s\n", Cyan(label), Yellow(value))
}

// Warning prints a warning message in yellow
func (p *Printer) Warning(msg string) {
	if p.Quiet {
		return
	}
	fmt.Fprintln(p.Out, Yellow(msg))
}
