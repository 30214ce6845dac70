package drives

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// Eject opens the tray via the CDROMEJECT ioctl. Best effort: slot loading
// drives and busy devices refuse, which callers treat as non-fatal.
func Eject(devicePath string) error {
	devicePath = strings.TrimSpace(devicePath)
	if devicePath == "" {
		return fmt.Errorf("empty device path")
	}

	fd, err := unix.Open(devicePath, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", devicePath, err)
	}
	defer unix.Close(fd)

	if _, err := unix.IoctlRetInt(fd, ioctlCDROMEject); err != nil {
		return fmt.Errorf("ioctl CDROMEJECT on %s: %w", devicePath, err)
	}
	return nil
}
