package drives

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// Linux ioctl numbers from <linux/cdrom.h>.
const (
	ioctlCDROMDriveStatus = 0x5326
	ioctlCDROMEject       = 0x5309
)

// MediaStatus is the result of a CDROM_DRIVE_STATUS ioctl call.
type MediaStatus int

const (
	MediaStatusNoInfo   MediaStatus = 0
	MediaStatusNoDisc   MediaStatus = 1
	MediaStatusTrayOpen MediaStatus = 2
	MediaStatusNotReady MediaStatus = 3
	MediaStatusDiscOK   MediaStatus = 4
)

// String returns a human-readable label for the media status.
func (s MediaStatus) String() string {
	switch s {
	case MediaStatusNoInfo:
		return "no_info"
	case MediaStatusNoDisc:
		return "no_disc"
	case MediaStatusTrayOpen:
		return "tray_open"
	case MediaStatusNotReady:
		return "not_ready"
	case MediaStatusDiscOK:
		return "disc_ok"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// HasDisc reports whether the status means a readable disc is loaded.
func (s MediaStatus) HasDisc() bool {
	return s == MediaStatusDiscOK
}

// ProbeMedia queries drive state using the CDROM_DRIVE_STATUS ioctl. It
// answers "is there a disc" without spinning up makemkvcon.
func ProbeMedia(devicePath string) (MediaStatus, error) {
	devicePath = strings.TrimSpace(devicePath)
	if devicePath == "" {
		return MediaStatusNoInfo, fmt.Errorf("empty device path")
	}

	fd, err := unix.Open(devicePath, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return MediaStatusNoInfo, fmt.Errorf("open %s: %w", devicePath, err)
	}
	defer unix.Close(fd)

	status, err := unix.IoctlRetInt(fd, ioctlCDROMDriveStatus)
	if err != nil {
		return MediaStatusNoInfo, fmt.Errorf("ioctl CDROM_DRIVE_STATUS on %s: %w", devicePath, err)
	}
	return MediaStatus(status), nil
}
