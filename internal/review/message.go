// Package review holds the review-result domain: the event a teacher's
// verdict produces and its rendering into chat-sized messages.
package review

import (
	"fmt"
	"strings"
)

// Event is a single reviewed lesson attempt.
type Event struct {
	LessonTitle string `json:"lesson_title"`
	LessonURL   string `json:"lesson_url,omitempty"` // empty when the API omits it
	IsNegative  bool   `json:"is_negative"`
}

// NoLinkPlaceholder is shown in place of a missing lesson URL.
const NoLinkPlaceholder = "no link available"

// Result markers prefixed to the verdict line.
const (
	FailureMarker = "❌"
	SuccessMarker = "✅"
)

// Verdict phrases keyed by Event.IsNegative.
var verdicts = map[bool]string{
	true:  "Unfortunately, the work needs revision. Please address the remarks!",
	false: "The work has been accepted! Well done!",
}

var markers = map[bool]string{
	true:  FailureMarker,
	false: SuccessMarker,
}

// Verdict returns the marked result line for a review outcome.
func Verdict(isNegative bool) string {
	return markers[isNegative] + " " + verdicts[isNegative]
}

// CreateMessage renders the chat message for a reviewed attempt.
func CreateMessage(ev Event) string {
	url := ev.LessonURL
	if strings.TrimSpace(url) == "" {
		url = NoLinkPlaceholder
	}

	var b strings.Builder
	b.WriteString("🧑‍🏫 The teacher has reviewed your work:\n")
	fmt.Fprintf(&b, "💻 %s\n", ev.LessonTitle)
	fmt.Fprintf(&b, "📌 Lesson link: %s\n", url)
	b.WriteString(Verdict(ev.IsNegative))
	return b.String()
}
