// Package inbox parses and classifies Shinkai inbox identifiers.
//
// An inbox names a conversation thread on a node. Two shapes exist:
//
//	job_inbox::<job_id>::<is_e2e>
//	inbox::<sender>::<receiver>::<is_e2e>
//
// Job inboxes are backed by an asynchronous agent task, so replies arrive
// some time after the user's message. Everything here is pure string handling.
package inbox

import (
	"strings"

	"github.com/pkg/errors"
)

const (
	Separator = "::"

	JobInboxPrefix  = "job_inbox"
	PeerInboxPrefix = "inbox"
)

var (
	ErrInvalidInboxID = errors.New("invalid inbox id")
	ErrNotJobInbox    = errors.New("inbox is not a job inbox")
)

// Classifier reports whether an inbox id denotes a job conversation.
type Classifier interface {
	IsJob(inboxID string) bool
}

// ClassifierFunc adapts a plain predicate to a Classifier.
type ClassifierFunc func(inboxID string) bool

func (f ClassifierFunc) IsJob(inboxID string) bool {
	return f(inboxID)
}

// DefaultClassifier classifies by the inbox id prefix.
var DefaultClassifier Classifier = ClassifierFunc(IsJobInbox)

// IsJobInbox is true iff the first segment of the id is "job_inbox".
func IsJobInbox(inboxID string) bool {
	parts := strings.Split(inboxID, Separator)
	return len(parts) > 1 && parts[0] == JobInboxPrefix
}

// JobID extracts the job identifier from a job inbox id.
func JobID(inboxID string) (string, error) {
	parts := strings.Split(inboxID, Separator)
	if len(parts) < 2 || parts[0] == "" {
		return "", errors.Wrapf(ErrInvalidInboxID, "%q", inboxID)
	}
	if parts[0] != JobInboxPrefix {
		return "", errors.Wrapf(ErrNotJobInbox, "%q", inboxID)
	}
	if parts[1] == "" {
		return "", errors.Wrapf(ErrInvalidInboxID, "%q has an empty job id", inboxID)
	}
	return parts[1], nil
}

// JobInboxID builds the inbox id the node assigns to a job.
func JobInboxID(jobID string) string {
	return strings.Join([]string{JobInboxPrefix, jobID, "false"}, Separator)
}
