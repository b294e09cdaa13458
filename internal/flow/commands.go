package flow

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// Command names, without the leading slash.
const (
	CommandStart         = "start"
	CommandHelp          = "help"
	CommandSetProfile    = "set_profile"
	CommandLogWater      = "log_water"
	CommandLogFood       = "log_food"
	CommandLogWorkout    = "log_workout"
	CommandCheckProgress = "check_progress"
	CommandCharts        = "charts"
	CommandHistory       = "history"
	CommandCancel        = "cancel"
)

// ParseCommand splits "/name args" at the first whitespace (space, tab or
// newline) into its lower-cased name and trimmed arguments. A "@botname"
// suffix on the name is ignored.
func ParseCommand(text string) (name, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") || len(text) == 1 {
		return "", "", false
	}
	head, rest := text[1:], ""
	if i := strings.IndexFunc(head, unicode.IsSpace); i >= 0 {
		head, rest = head[:i], head[i:]
	}
	head, _, _ = strings.Cut(head, "@")
	if head == "" {
		return "", "", false
	}
	return strings.ToLower(head), strings.TrimSpace(rest), true
}

// profileOptional reports whether cmd may run before a profile exists.
func profileOptional(cmd string) bool {
	switch cmd {
	case CommandStart, CommandHelp, CommandSetProfile, CommandCancel:
		return true
	}
	return false
}

func (e *Engine) cmdStart(ctx context.Context, userID, args string) (Reply, error) {
	return Reply{Text: msgWelcome + "\n\n" + e.commandList()}, nil
}

func (e *Engine) cmdHelp(ctx context.Context, userID, args string) (Reply, error) {
	return Reply{Text: e.commandList()}, nil
}

func (e *Engine) commandList() string {
	return fmt.Sprintf(msgCommandsFmt, strings.Join(e.catalog.Kinds(), ", "))
}
