package commands

import (
	"context"
	"strings"

	"github.com/MrWong99/zinnia/internal/dispatch"
)

// Test echoes the utterance back. It checks the whole capture, recognition
// and speech path end to end.
type Test struct{}

var _ dispatch.Handler = Test{}

func (Test) Name() string { return "Test Command" }

func (Test) Description() string {
	return "This command is purely to test if commands work. It doesn't do anything productive."
}

func (Test) Help() string {
	return `Simply say a phrase containing the words "Test Command" and you will get a response.`
}

func (Test) UsesInternet() bool { return false }

func (Test) Recognize(text string) bool { return strings.Contains(text, "test command") }

func (Test) Effect(_ context.Context, text string, out dispatch.Speaker) dispatch.Result {
	out.Say("Test Command recognized. What you said was: " + text)
	return dispatch.Done
}
