package domain

import "time"

const (
	// ChunkSize is the unit of file I/O and of pipe delivery.
	ChunkSize = 4 * 1024 * 1024
	// PauseThreshold is the most unread data the encrypt pipe may hold.
	PauseThreshold = ChunkSize * 4
	// ResumeThreshold is where a paused producer may continue.
	ResumeThreshold = ChunkSize * 2

	IVSize      = 16
	FileKeySize = 32

	SectorAlignment = 512
	ReadAhead       = 32 * 1024 * 1024
	FlushTimeout    = 30 * time.Second
)
