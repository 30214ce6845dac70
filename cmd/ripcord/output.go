package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

func shouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

type statusKind int

const (
	statusOK statusKind = iota
	statusWarn
	statusError
)

func renderStatusLine(label string, kind statusKind, detail string, colorize bool) string {
	marker := "ok"
	color := text.FgGreen
	switch kind {
	case statusWarn:
		marker = "warn"
		color = text.FgYellow
	case statusError:
		marker = "fail"
		color = text.FgRed
	}
	if colorize {
		marker = color.Sprint(marker)
	}
	if detail == "" {
		return fmt.Sprintf("  [%s] %s", marker, label)
	}
	return fmt.Sprintf("  [%s] %s: %s", marker, label, detail)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
