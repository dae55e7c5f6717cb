package server

import (
	"strconv"
	"strings"

	"github.com/TheGojiOG/masterserver/internal/console"
)

// CommandKind identifies a console command
type CommandKind int

const (
	CommandNone CommandKind = iota
	CommandStop
	CommandRestart
	CommandLog
	CommandQuit
	CommandHelp
	CommandRatingRange
	CommandInvalidRatingRange
	CommandUnknown
)

// Command is one parsed line of console input
type Command struct {
	Kind  CommandKind
	Raw   string
	Value int
}

type commandSpec struct {
	kind  CommandKind
	short string
	long  string
	usage string
	help  string
}

var commandTable = []commandSpec{
	{kind: CommandStop, short: "s", long: "stop", usage: "(s)top", help: "Stops hosting"},
	{kind: CommandRestart, short: "r", long: "restart", usage: "(r)estart", help: "Restarts the hosting service even when stopped"},
	{kind: CommandLog, short: "l", long: "log", usage: "(l)og", help: "Toggles logging (starts enabled)"},
	{kind: CommandQuit, short: "q", long: "quit", usage: "(q)uit", help: "Quits the application"},
	{kind: CommandHelp, short: "h", long: "help", usage: "(h)elp", help: "Get a full list of commands"},
}

const ratingRangePrefix = "elo"

// HelpText lists the available console commands
func HelpText() string {
	var b strings.Builder
	b.WriteString("Commands Available\n")
	for _, entry := range commandTable {
		b.WriteString(entry.usage)
		b.WriteString(" - ")
		b.WriteString(entry.help)
		b.WriteString("\n")
	}
	b.WriteString("elo=<n> - Sets the elo range used for matchmaking, 0 turns it off\n")
	return b.String()
}

// ParseCommand interprets one line of console input, case-insensitively.
func ParseCommand(line string) Command {
	normalized := strings.ToLower(strings.TrimSpace(console.SanitizeLine(line)))
	cmd := Command{Raw: normalized}
	if normalized == "" {
		cmd.Kind = CommandNone
		return cmd
	}

	for _, entry := range commandTable {
		if normalized == entry.short || normalized == entry.long {
			cmd.Kind = entry.kind
			return cmd
		}
	}

	if strings.HasPrefix(normalized, ratingRangePrefix) {
		value, ok := parseRatingRange(normalized)
		if !ok {
			cmd.Kind = CommandInvalidRatingRange
			return cmd
		}
		cmd.Kind = CommandRatingRange
		cmd.Value = value
		return cmd
	}

	cmd.Kind = CommandUnknown
	return cmd
}

// parseRatingRange reads the integer after the first '=' with spaces removed.
// A line without '=' is parsed whole, which never yields an integer.
func parseRatingRange(line string) (int, bool) {
	payload := line[strings.Index(line, "=")+1:]
	payload = strings.ReplaceAll(payload, " ", "")
	value, err := strconv.Atoi(payload)
	if err != nil || value < 0 {
		return 0, false
	}
	return value, true
}
