// Package drives tracks optical drive state: enumeration via makemkvcon,
// reserve/release arbitration, media probes, and udev insertion events.
package drives
