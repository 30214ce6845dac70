package botfacade

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"ripcord/internal/inspection"
	"ripcord/internal/queue"
	"ripcord/internal/services"
)

// DisplayError translates an engine error into a message fit for a chat
// reply. Unknown errors fall back to the raw message.
func DisplayError(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, services.ErrDriveNotFound):
		return "That drive doesn't exist. Use the drives command to see what's attached."
	case errors.Is(err, services.ErrDriveUnavailable):
		return "That drive is busy or offline right now. Try again when its current job finishes."
	case errors.Is(err, services.ErrNoDisc):
		return "There's no rippable disc in that drive."
	case errors.Is(err, services.ErrStaleTitles):
		return "The disc has changed since titles were listed. List titles again and re-select."
	case errors.Is(err, services.ErrJobNotFound):
		return "No job with that id."
	case errors.Is(err, services.ErrInspectionTimeout):
		return "Disc inspection timed out. The disc may be damaged or the drive is struggling to read it."
	case errors.Is(err, services.ErrValidation):
		return fmt.Sprintf("Invalid request: %s", rootMessage(err))
	case errors.Is(err, services.ErrExternalTool):
		return fmt.Sprintf("MakeMKV reported a problem: %s", rootMessage(err))
	case errors.Is(err, services.ErrTimeout):
		return "The rip timed out."
	default:
		return err.Error()
	}
}

// rootMessage strips the "marker: component: op:" prefix for display.
func rootMessage(err error) string {
	msg := err.Error()
	parts := strings.Split(msg, ": ")
	if len(parts) > 3 {
		return strings.Join(parts[3:], ": ")
	}
	return msg
}

// FormatDuration renders a title duration as h:mm:ss.
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "0:00:00"
	}
	d := time.Duration(seconds) * time.Second
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	secs := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
}

// SummarizeJob renders a one-line job description for chat output.
func SummarizeJob(job *queue.Job) string {
	if job == nil {
		return ""
	}
	label := inspection.DisplayLabel(job.DiscLabel)
	if label == "" {
		label = "Untitled Disc"
	}
	switch job.Status {
	case queue.StatusRunning:
		return fmt.Sprintf("Job %d: %s - %s %.0f%% (drive %d)",
			job.ID, label, job.ProgressStage, job.ProgressPercent, job.DriveID)
	case queue.StatusFailed:
		return fmt.Sprintf("Job %d: %s - failed: %s", job.ID, label, job.ErrorMessage)
	case queue.StatusCompleted:
		return fmt.Sprintf("Job %d: %s - completed, %d file(s)", job.ID, label, len(job.OutputFiles))
	default:
		return fmt.Sprintf("Job %d: %s - %s (drive %d)", job.ID, label, job.Status, job.DriveID)
	}
}
