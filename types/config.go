package types

import (
	"time"
)

// RequestConfig bounds the in-flight request bookkeeping on both sides of
// the relay.
type RequestConfig struct {
	RequestQueueSize int
	RequestTimeout   time.Duration
	ClearInterval    time.Duration

	// ApprovalTimeout bounds how long the approval gate waits for a user
	// decision. Zero keeps a pending approval alive until the user acts.
	ApprovalTimeout time.Duration

	// Retention is the age after which completed records are purged when a
	// viewer reads the completed queue.
	Retention time.Duration
}

func DefaultRequestConfig() *RequestConfig {
	return &RequestConfig{
		RequestQueueSize: 64,
		RequestTimeout:   time.Minute,
		ClearInterval:    time.Second * 5,
		ApprovalTimeout:  0,
		Retention:        time.Hour * 24 * 30,
	}
}
