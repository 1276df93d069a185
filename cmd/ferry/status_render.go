package main

import (
	"fmt"
	"strings"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const statusLabelWidth = 18

var statusStyles = map[statusKind]struct {
	label string
	color string
}{
	statusInfo:  {"INFO", ansiBlue},
	statusOK:    {"OK", ansiGreen},
	statusWarn:  {"WARN", ansiYellow},
	statusError: {"ERROR", ansiRed},
}

// statusPrinter accumulates sectioned "label: [KIND] message" lines.
type statusPrinter struct {
	b        strings.Builder
	colorize bool
	sections int
}

func (p *statusPrinter) paint(color, s string) string {
	if !p.colorize || color == "" {
		return s
	}
	return color + s + ansiReset
}

func (p *statusPrinter) section(title string) {
	if p.sections > 0 {
		p.b.WriteByte('\n')
	}
	p.sections++
	heading := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	p.b.WriteString(p.paint(ansiBlue, heading) + "\n")
	p.b.WriteString(p.paint(ansiBlue, strings.Repeat("-", len(heading))) + "\n")
}

func (p *statusPrinter) line(label string, kind statusKind, message string) {
	style := statusStyles[kind]
	tag := "[" + style.label + "]"
	if message != "" {
		tag += " " + message
	}
	p.b.WriteString(p.paint(style.color, fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", tag)) + "\n")
}

func (p *statusPrinter) String() string {
	return p.b.String()
}
