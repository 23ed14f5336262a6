package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/zinnia/internal/dispatch"
	"github.com/MrWong99/zinnia/internal/phonetic"
)

type helpState int

const (
	askForCommand helpState = iota
	giveHelp
)

type helpEntry struct {
	name     string // lower case
	help     string
	internet bool
}

// Help tells the user how to use the other commands. It asks which command
// the user wants help with, then answers on the next turn.
type Help struct {
	entries []helpEntry
	names   []string
	matcher *phonetic.Matcher
	state   helpState
}

var (
	_ dispatch.Handler       = (*Help)(nil)
	_ dispatch.FocusReleaser = (*Help)(nil)
)

// NewHelp returns a Help command describing handlers.
func NewHelp(handlers []dispatch.Handler) *Help {
	h := &Help{matcher: phonetic.New()}
	for _, c := range handlers {
		h.entries = append(h.entries, helpEntry{
			name:     strings.ToLower(c.Name()),
			help:     c.Help(),
			internet: c.UsesInternet(),
		})
		h.names = append(h.names, c.Name())
	}
	return h
}

func (*Help) Name() string { return "Help Command" }

func (*Help) Description() string {
	return "This command gives help information for any of the available commands."
}

func (*Help) Help() string {
	return `Say "Help" and then supply the name of a command when prompted.`
}

func (*Help) UsesInternet() bool { return false }

func (*Help) Recognize(text string) bool { return strings.Contains(text, "help") }

func (h *Help) Effect(_ context.Context, text string, out dispatch.Speaker) dispatch.Result {
	if h.state == askForCommand {
		out.Say("Which command would you like help with?")
		h.state = giveHelp
		return dispatch.Continue
	}
	h.state = askForCommand

	e, ok := h.lookup(text)
	if !ok {
		out.Say(fmt.Sprintf("I couldn't find a command named %s, please try again.", text))
		return dispatch.Done
	}
	does := "does not"
	if e.internet {
		does = "does"
	}
	out.Say(fmt.Sprintf("%s This command %s require the internet.", e.help, does))
	return dispatch.Done
}

// ReleaseFocus forgets a pending question.
func (h *Help) ReleaseFocus() { h.state = askForCommand }

// lookup finds the command named in text: exact name first, then the closest
// sounding name.
func (h *Help) lookup(text string) (helpEntry, bool) {
	for _, e := range h.entries {
		if strings.Contains(text, e.name) {
			return e, true
		}
	}
	name, _, ok := h.matcher.Match(text, h.names)
	if !ok {
		return helpEntry{}, false
	}
	for _, e := range h.entries {
		if e.name == strings.ToLower(name) {
			return e, true
		}
	}
	return helpEntry{}, false
}
