package review

import (
	"strings"
	"testing"
)

func TestCreateMessageVerdicts(t *testing.T) {
	tests := []struct {
		name       string
		isNegative bool
		marker     string
		phrase     string
		absent     string
	}{
		{"negative review", true, FailureMarker, "needs revision", SuccessMarker},
		{"accepted review", false, SuccessMarker, "accepted", FailureMarker},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := CreateMessage(Event{
				LessonTitle: "Lesson A",
				LessonURL:   "https://example.com/lesson",
				IsNegative:  tt.isNegative,
			})
			if !strings.Contains(msg, tt.marker) {
				t.Errorf("expected marker %q in %q", tt.marker, msg)
			}
			if !strings.Contains(msg, tt.phrase) {
				t.Errorf("expected phrase %q in %q", tt.phrase, msg)
			}
			if strings.Contains(msg, tt.absent) {
				t.Errorf("did not expect %q in %q", tt.absent, msg)
			}
			if !strings.Contains(msg, "Lesson A") {
				t.Errorf("expected lesson title in %q", msg)
			}
		})
	}
}

func TestCreateMessageLessonURL(t *testing.T) {
	withURL := CreateMessage(Event{LessonTitle: "T", LessonURL: "https://dvmn.org/lessons/42/"})
	if !strings.Contains(withURL, "https://dvmn.org/lessons/42/") {
		t.Errorf("expected lesson url verbatim, got %q", withURL)
	}
	if strings.Contains(withURL, NoLinkPlaceholder) {
		t.Errorf("did not expect placeholder when url present: %q", withURL)
	}

	for _, url := range []string{"", "   "} {
		msg := CreateMessage(Event{LessonTitle: "T", LessonURL: url})
		if !strings.Contains(msg, NoLinkPlaceholder) {
			t.Errorf("expected placeholder for url %q, got %q", url, msg)
		}
	}
}

func TestVerdictEndsMessage(t *testing.T) {
	msg := CreateMessage(Event{LessonTitle: "T", IsNegative: true})
	if !strings.HasSuffix(msg, Verdict(true)) {
		t.Errorf("expected message to end with verdict, got %q", msg)
	}
}
