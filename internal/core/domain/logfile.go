package domain

import "time"

// LogFile is the metadata of one per-request log file
type LogFile struct {
	Filename string    `json:"filename"`
	Size     int64     `json:"size"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}
