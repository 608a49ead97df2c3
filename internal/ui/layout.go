package ui

import "time"

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the threshold below which cards stack in one column.
	LayoutCompactWidth = 80

	// SidebarWidth is the outer width of the sidebar pane.
	SidebarWidth = 28

	// CardWidth is the outer width of one device card.
	CardWidth = 26
)

// Log display limits.
const (
	// LogTailLines is the number of log lines read for the logs view.
	LogTailLines = 500
)

// Timing constants.
const (
	// FrameInterval drives fan animation and snapshot refresh.
	FrameInterval = 100 * time.Millisecond

	// LogRefreshInterval is the minimum time between log file reads.
	LogRefreshInterval = time.Second
)
