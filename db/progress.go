package db

// Progress update message
type ProgressUpdate struct {
	Curr    int    `json:"curr"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}

// Progess updater interface
type ProgressUpdater interface {
	UpdateProgress(curr int, total int, message string)
}

// Optionally implemented by a ProgressUpdater that also follows single file transfers
type TransferProgressUpdater interface {
	UpdateTransfer(name string, done int64, total int64)
}
