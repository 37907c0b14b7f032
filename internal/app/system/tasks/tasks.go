// Package tasks defines the periodic maintenance jobs the server runs.
package tasks

import (
	"context"
	"time"
)

// Job is one periodic unit of work. Run is called every Interval with a
// context bounded by Timeout (30s when zero).
type Job struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}
