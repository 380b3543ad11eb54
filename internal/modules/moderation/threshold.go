package moderation

import (
	"math"

	"council-bot/internal/storage"
)

type Action = storage.Action

const (
	ActionDeleteMessage  = storage.ActionDeleteMessage
	ActionSilenceSuspect = storage.ActionSilenceSuspect
	ActionBlockReporter  = storage.ActionBlockReporter
)

const maxClampedRequired = 3

// RequiredVotes is fixed when a case is opened from the number of moderators online at that moment.
// Silencing is not capped, so larger teams need broader agreement; zero moderators means no votes are required.
func RequiredVotes(action Action, moderatorsOnline int) int {
	if moderatorsOnline < 0 {
		moderatorsOnline = 0
	}
	root := int(math.Round(math.Sqrt(float64(moderatorsOnline))))
	if action == ActionSilenceSuspect {
		return root
	}
	return min(max(root, 1), maxClampedRequired)
}

type State string

const (
	StateOpen     State = "open"
	StateResolved State = "resolved"
)

// Moot reports whether a track can no longer fire because its target is gone.
func Moot(c storage.ReportCase, action Action) bool {
	return action == ActionDeleteMessage && c.MessageDeleted && !c.Delete.Resolved
}

func CaseState(c storage.ReportCase) State {
	for _, action := range storage.Actions {
		if !c.Track(action).Resolved && !Moot(c, action) {
			return StateOpen
		}
	}
	return StateResolved
}
