package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDriveNotFound marks requests that reference a drive the registry does not know.
	ErrDriveNotFound = errors.New("drive not found")
	// ErrDriveUnavailable marks requests that target a drive that is busy or offline.
	ErrDriveUnavailable = errors.New("drive unavailable")
	// ErrNoDisc marks rip requests against a drive with no readable disc.
	ErrNoDisc = errors.New("no disc present")
	// ErrInspectionTimeout marks disc inventories that exceeded their deadline.
	ErrInspectionTimeout = errors.New("inspection timeout")
	// ErrStaleTitles marks rip requests whose title selection predates the current disc.
	ErrStaleTitles = errors.New("stale title selection")
	// ErrJobNotFound marks lookups for unknown job identifiers.
	ErrJobNotFound = errors.New("job not found")
	// ErrExternalTool marks failures reported by makemkvcon or another subprocess.
	ErrExternalTool = errors.New("external tool error")
	// ErrValidation marks rejected inputs.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks unusable configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrTimeout marks operations that exceeded their deadline.
	ErrTimeout = errors.New("timeout")
	// ErrTransient marks failures that may succeed on retry.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
