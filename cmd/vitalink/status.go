package main

import (
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/jromeu/vitalink/internal/ingest"
)

var (
	badgeConnected    = color.New(color.FgGreen, color.Bold)
	badgeConnecting   = color.New(color.FgYellow)
	badgeDisconnected = color.New(color.FgRed)
)

// stdoutIsTerminal reports whether stdout is an interactive terminal; piped
// output gets plain text and no live status lines.
func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// stateBadge renders the connection state the way the app has always shown
// it to users.
func stateBadge(s ingest.State) string {
	switch s {
	case ingest.StateConnected:
		return badgeConnected.Sprint("Conectado")
	case ingest.StateConnecting:
		return badgeConnecting.Sprint("Conectando...")
	default:
		return badgeDisconnected.Sprint("Desconectado")
	}
}
