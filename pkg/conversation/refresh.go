package conversation

import (
	"time"

	"github.com/go-go-golems/shinkai/pkg/inbox"
)

type RefreshInput struct {
	InboxID    string
	Latest     *Message
	Enabled    bool
	Interval   time.Duration
	Classifier inbox.Classifier
}

// DecideRefresh reports whether the newest page should be fetched again, and
// after how long. Only a job inbox whose newest message was written locally
// is waiting for an answer; every other state is settled.
func DecideRefresh(in RefreshInput) (time.Duration, bool) {
	if !in.Enabled {
		return 0, false
	}
	if in.Latest == nil {
		return 0, false
	}
	classifier := in.Classifier
	if classifier == nil {
		classifier = inbox.DefaultClassifier
	}
	if !classifier.IsJob(in.InboxID) {
		return 0, false
	}
	if !in.Latest.IsLocal {
		return 0, false
	}
	interval := in.Interval
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return interval, true
}
