package ipc

// DriveInfo is the wire representation of a drive.
type DriveInfo struct {
	ID        int    `json:"id"`
	Device    string `json:"device"`
	Model     string `json:"model"`
	DiscLabel string `json:"disc_label"`
	State     string `json:"state"`
}

// TitleInfo is the wire representation of one rippable title.
type TitleInfo struct {
	Index       int    `json:"index"`
	Name        string `json:"name"`
	Duration    int    `json:"duration_seconds"`
	Size        string `json:"size"`
	Chapters    int    `json:"chapters"`
	MainFeature bool   `json:"main_feature"`
}

// JobInfo is the wire representation of a rip job.
type JobInfo struct {
	ID              int64    `json:"id"`
	DriveID         int      `json:"drive_id"`
	DiscLabel       string   `json:"disc_label"`
	TitleIndexes    []int    `json:"title_indexes"`
	Status          string   `json:"status"`
	ProgressStage   string   `json:"progress_stage"`
	ProgressPercent float64  `json:"progress_percent"`
	ProgressTitle   int      `json:"progress_title"`
	ErrorMessage    string   `json:"error_message,omitempty"`
	OutputFiles     []string `json:"output_files,omitempty"`
	CreatedAt       string   `json:"created_at"`
	FinishedAt      string   `json:"finished_at,omitempty"`
}

type DrivesRequest struct{}

type DrivesResponse struct {
	Drives []DriveInfo `json:"drives"`
}

type TitlesRequest struct {
	DriveID int `json:"drive_id"`
}

type TitlesResponse struct {
	DriveID   int         `json:"drive_id"`
	DiscLabel string      `json:"disc_label"`
	Titles    []TitleInfo `json:"titles"`
}

type RipRequest struct {
	DriveID      int    `json:"drive_id"`
	TitleIndexes []int  `json:"title_indexes"`
	OutputDir    string `json:"output_dir,omitempty"`
}

type RipResponse struct {
	Job JobInfo `json:"job"`
}

type JobStatusRequest struct {
	ID int64 `json:"id"`
}

type JobStatusResponse struct {
	Job JobInfo `json:"job"`
}

type JobsListRequest struct {
	Statuses []string `json:"statuses,omitempty"`
}

type JobsListResponse struct {
	Jobs []JobInfo `json:"jobs"`
}

type CancelRequest struct {
	ID int64 `json:"id"`
}

type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

type RetryRequest struct {
	ID int64 `json:"id"`
}

type RetryResponse struct {
	Requeued bool `json:"requeued"`
}

type JobsClearRequest struct {
	Statuses []string `json:"statuses,omitempty"`
}

type JobsClearResponse struct {
	Removed int64 `json:"removed"`
}

type StartRequest struct{}

type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

type StopRequest struct{}

type StopResponse struct {
	Stopped bool `json:"stopped"`
}

type StatusRequest struct{}

type StatusResponse struct {
	Running    bool           `json:"running"`
	PID        int            `json:"pid"`
	JobDBPath  string         `json:"job_db_path"`
	LockPath   string         `json:"lock_path"`
	SocketPath string         `json:"socket_path"`
	JobStats   map[string]int `json:"job_stats"`
	Drives     []DriveInfo    `json:"drives"`
}

type TestNotificationRequest struct{}

type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
