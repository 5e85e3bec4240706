package main

import (
	"os"
	"testing"

	"github.com/AndreyBychenkow/LessonReportBot/internal/testenv"
)

// TestMain keeps the command tests away from the real ~/.lessonbot.
// run opens the journal and event log under config.DataDir().
func TestMain(m *testing.M) {
	os.Exit(testenv.RunIsolatedMain(m))
}
