package cli

import (
	"fmt"
	"io"

	"github.com/roach88/classprep/internal/engine"
	"github.com/roach88/classprep/internal/model"
)

// narrator prints the operator-facing status lines. Logs go to stderr;
// narration goes to stdout so a non-technical operator sees a short story
// of the run.
type narrator struct {
	w io.Writer
}

func (n narrator) say(format string, args ...any) {
	fmt.Fprintf(n.w, format+"\n", args...)
}

// observe turns engine progress events into narration.
func (n narrator) observe(ev engine.Event) {
	switch ev.Kind {
	case engine.EventCleanupStarted:
		n.say("Getting tomorrow set up. First I'm removing the %s from last time.", plural(ev.Count, "old item", "old items"))
	case engine.EventCleanupFinished:
		n.say("Done cleaning up: %s removed. Now I'm making the new assignments.", plural(ev.Count, "item", "items"))
	case engine.EventFileCopied:
		n.say("I copied %s to %q.", ev.Template, ev.Name)
	case engine.EventAssignmentCreated:
		n.say("I created the assignment %q.", ev.Name)
	case engine.EventRolledBack:
		if ev.Count > 0 {
			n.say("Something went wrong, so I removed the %s I had just made.", plural(ev.Count, "item", "items"))
		}
	case engine.EventRecordSaved:
		n.say("I wrote down what I made so I can clean it up next time.")
	}
}

func (n narrator) provisioned(res *engine.Result, errorFile string) {
	n.say("All set! %s scheduled for %s.",
		plural(len(res.Created), "assignment is", "assignments are"),
		res.ScheduledFor.Format(releaseLayout))
	if len(res.CarriedForward) > 0 {
		n.say("I couldn't remove %s from last time; I'll try again tomorrow. The details are in %s.",
			plural(len(res.CarriedForward), "item", "items"), errorFile)
	}
}

func (n narrator) failed(errorFile string) {
	n.say("Uh oh! I ran into a problem. I wrote the details to %s. Please send that file along.", errorFile)
}

func (n narrator) problem(err error) {
	n.say("Uh oh! I ran into a problem: %v", err)
}

func (n narrator) corrupt(path string) {
	n.say("I can't read my notes from last time (%s), so I stopped before changing anything. Please send that file along.", path)
}

func (n narrator) noCredentials(dataDir string) {
	n.say("I can't find your Google credentials, so I have no way to convince Google it's you. They belong in %s.", dataDir)
}

func (n narrator) courses(courses []model.Course) {
	if len(courses) == 0 {
		n.say("No courses found.")
		return
	}
	for _, c := range courses {
		n.say("%s: %s", c.Name, c.ID)
	}
}

const releaseLayout = "Monday, January 2 at 3:04 PM"

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
