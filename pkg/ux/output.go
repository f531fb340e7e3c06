// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the facebench CLI.
//
// Output degrades with the personality level: styled text and bordered
// tables on a terminal, tab-separated plain text when piped.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Aleutian color palette - deep ocean teals and arctic waters
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // Bright teal - highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // Primary teal - main brand color
	ColorTealDeep    = lipgloss.Color("#16858E") // Deep teal - borders, accents
	ColorSlate       = lipgloss.Color("#2C4A54") // Slate - muted text, borders

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title   lipgloss.Style
	Header  lipgloss.Style
	Cell    lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Border  lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Header:  lipgloss.NewStyle().Bold(true).Foreground(ColorTealPrimary).Padding(0, 1),
	Cell:    lipgloss.NewStyle().Padding(0, 1),
	Bold:    lipgloss.NewStyle().Bold(true),
	Muted:   lipgloss.NewStyle().Foreground(ColorSlate),
	Success: lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning: lipgloss.NewStyle().Foreground(ColorWarning),
	Error:   lipgloss.NewStyle().Foreground(ColorError),
	Border:  lipgloss.NewStyle().Foreground(ColorTealDeep),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconArrow   Icon = "→"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconPending:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

// -----------------------------------------------------------------------------
// Printer
// -----------------------------------------------------------------------------

// Printer writes styled output to w. A nil level follows the global
// personality level.
type Printer struct {
	w     io.Writer
	level PersonalityLevel
}

// NewPrinter returns a Printer that follows the global personality level.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// NewPrinterWithLevel returns a Printer fixed at level.
func NewPrinterWithLevel(w io.Writer, level PersonalityLevel) *Printer {
	return &Printer{w: w, level: level}
}

func (p *Printer) lvl() PersonalityLevel {
	if p.level != "" {
		return p.level
	}
	return GetPersonalityLevel()
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer { return p.w }

// Title prints a styled title. Machine output prints "# title".
func (p *Printer) Title(text string) {
	if p.lvl() == PersonalityMachine {
		fmt.Fprintf(p.w, "# %s\n", text)
		return
	}
	fmt.Fprintln(p.w, Styles.Title.Render(text))
}

// Success prints a success message with checkmark
func (p *Printer) Success(text string) {
	p.status("OK", IconSuccess, Styles.Success, text)
}

// Warning prints a warning message
func (p *Printer) Warning(text string) {
	p.status("WARN", IconWarning, Styles.Warning, text)
}

// Error prints an error message
func (p *Printer) Error(text string) {
	p.status("ERROR", IconError, Styles.Error, text)
}

func (p *Printer) status(prefix string, icon Icon, style lipgloss.Style, text string) {
	switch p.lvl() {
	case PersonalityMachine:
		fmt.Fprintf(p.w, "%s: %s\n", prefix, text)
	case PersonalityMinimal:
		fmt.Fprintf(p.w, "%s %s\n", icon, text)
	default:
		fmt.Fprintf(p.w, "%s %s\n", icon.Render(), style.Render(text))
	}
}

// Info prints an informational line
func (p *Printer) Info(text string) {
	if p.lvl() == PersonalityMachine {
		fmt.Fprintln(p.w, text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", Styles.Muted.Render("│"), text)
}

// Muted prints secondary text. Machine output drops it.
func (p *Printer) Muted(text string) {
	if p.lvl() == PersonalityMachine {
		return
	}
	fmt.Fprintln(p.w, Styles.Muted.Render(text))
}

// Table prints headers and rows as a bordered table, or tab-separated
// values at the machine level.
func (p *Printer) Table(headers []string, rows [][]string) {
	fmt.Fprintln(p.w, RenderTable(p.lvl(), headers, rows))
}

// RenderTable formats headers and rows for level.
func RenderTable(level PersonalityLevel, headers []string, rows [][]string) string {
	if level == PersonalityMachine {
		var b strings.Builder
		b.WriteString(strings.Join(headers, "\t"))
		for _, row := range rows {
			b.WriteByte('\n')
			b.WriteString(strings.Join(row, "\t"))
		}
		return b.String()
	}

	t := table.New().
		Headers(headers...).
		Rows(rows...)
	if level == PersonalityMinimal {
		return t.Border(lipgloss.ASCIIBorder()).String()
	}
	return t.
		Border(lipgloss.RoundedBorder()).
		BorderStyle(Styles.Border).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return Styles.Header
			}
			return Styles.Cell
		}).
		String()
}

// -----------------------------------------------------------------------------
// Package-level helpers on stdout
// -----------------------------------------------------------------------------

var stdout = NewPrinter(os.Stdout)

// Title prints a styled title to stdout
func Title(text string) { stdout.Title(text) }

// Success prints a success message to stdout
func Success(text string) { stdout.Success(text) }

// Warning prints a warning message to stdout
func Warning(text string) { stdout.Warning(text) }

// Error prints an error message to stdout
func Error(text string) { stdout.Error(text) }

// Info prints an informational line to stdout
func Info(text string) { stdout.Info(text) }

// Muted prints secondary text to stdout
func Muted(text string) { stdout.Muted(text) }

// Table prints a table to stdout
func Table(headers []string, rows [][]string) { stdout.Table(headers, rows) }
