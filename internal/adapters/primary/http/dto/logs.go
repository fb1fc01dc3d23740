package dto

import (
	"fmt"
	"time"

	"bloodcell-inference-service/internal/core/domain"
)

type LogFileResponse struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Created  string `json:"created"`
	Modified string `json:"modified"`
}

type ListLogsResponse struct {
	Success   bool              `json:"success"`
	TotalLogs int               `json:"total_logs"`
	Logs      []LogFileResponse `json:"logs"`
}

type LogContentResponse struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

type CleanupLogsResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	DeletedCount int    `json:"deleted_count"`
}

func ToListLogsResponse(files []domain.LogFile) ListLogsResponse {
	logs := make([]LogFileResponse, 0, len(files))
	for _, f := range files {
		logs = append(logs, LogFileResponse{
			Filename: f.Filename,
			Size:     f.Size,
			Created:  f.Created.Format(time.RFC3339),
			Modified: f.Modified.Format(time.RFC3339),
		})
	}
	return ListLogsResponse{Success: true, TotalLogs: len(logs), Logs: logs}
}

func ToCleanupLogsResponse(deleted, days int) CleanupLogsResponse {
	return CleanupLogsResponse{
		Success:      true,
		Message:      fmt.Sprintf("Cleaned up %d log file(s) older than %d days", deleted, days),
		DeletedCount: deleted,
	}
}
