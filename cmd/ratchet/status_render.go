package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

type statusTone int

const (
	toneNeutral statusTone = iota
	toneGood
	toneWarn
	toneBad
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

// statusLine formats "Label: value" with the value tinted when the output is
// a terminal.
func statusLine(label, value string, tone statusTone, colorize bool) string {
	if colorize {
		if color := toneColor(tone); color != "" {
			value = color + value + ansiReset
		}
	}
	return fmt.Sprintf("%s: %s", label, value)
}

func toneColor(tone statusTone) string {
	switch tone {
	case toneGood:
		return ansiGreen
	case toneWarn:
		return ansiYellow
	case toneBad:
		return ansiRed
	default:
		return ""
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
