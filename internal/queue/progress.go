package queue

import "time"

// Progress is a point-in-time snapshot of the processing state of a [Queue].
type Progress struct {
	HasStarted      bool
	HasFinished     bool
	StartTime       time.Time
	FinishTime      time.Time
	ProgressPct     float64
	TotalItems      int
	ProcessedItems  int
	InProgressItems int
	PassedItems     int
	FailedItems     int
	SkippedItems    int
	ETA             time.Time
	TimeLeft        time.Duration
	ItemsPerSec     float64
}
