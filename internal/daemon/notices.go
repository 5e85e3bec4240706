package daemon

import (
	"fmt"
	"time"
)

// Operator-facing notices sent through the notifier.
const (
	startupNotice        = "🤖 The bot is up and watching for review results!"
	connectionLostNotice = "⚠️ Lost connection to the review server. Waiting for the network to recover..."
)

func timeoutNotice(timeout time.Duration) string {
	return fmt.Sprintf("⚠️ The server did not answer within %d seconds... Still polling.", int(timeout.Seconds()))
}

func transportErrorNotice(err error) string {
	return fmt.Sprintf("⚠️ Error while polling for reviews: %v", err)
}

func unexpectedErrorNotice(err error) string {
	return fmt.Sprintf("⚠️ Unexpected error, skipping this response: %v", err)
}
