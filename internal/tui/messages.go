package tui

import "ai-newsletter/internal/feed"

type snapshotMsg struct {
	snapshot feed.Snapshot
}

type loadFailedMsg struct {
	message string
}
