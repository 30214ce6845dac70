package makemkv

import (
	"sort"
	"strconv"
	"strings"
)

// Robot-mode attribute codes emitted by makemkvcon for TINFO lines.
const (
	attrName       = 2
	attrChapters   = 8
	attrDuration   = 9
	attrSize       = 10
	attrBytes      = 11
	attrOutputName = 27
)

// CINFO attribute codes for disc-level values.
const (
	cinfoDiscName   = 2
	cinfoVolumeName = 32
)

// DriveInfo describes one optical drive reported by a DRV: line.
type DriveInfo struct {
	ID        int
	Model     string
	DiscLabel string
	Device    string
}

// TitleInfo describes one title reported by TINFO lines.
type TitleInfo struct {
	Index    int
	Name     string
	Duration int
	Size     string
	Bytes    int64
	Chapters int
	FileName string
}

// DiscInfo aggregates the inventory of a single disc.
type DiscInfo struct {
	Name    string
	Titles  []TitleInfo
	Skipped int
}

// ProgressUpdate captures MakeMKV progress output.
type ProgressUpdate struct {
	Stage   string
	Percent float64
	Message string
}

// Message is a MSG: diagnostic line.
type Message struct {
	Code int
	Text string
}

// ParseDriveList extracts drives from DRV: robot output. Slots without a
// device node are empty bays and are dropped.
func ParseDriveList(lines []string) []DriveInfo {
	drives := make([]DriveInfo, 0, 4)
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "DRV:") {
			continue
		}
		fields := splitRobotFields(strings.TrimPrefix(trimmed, "DRV:"))
		if len(fields) < 7 {
			continue
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		device := fields[6]
		if device == "" {
			continue
		}
		drives = append(drives, DriveInfo{
			ID:        id,
			Model:     fields[4],
			DiscLabel: fields[5],
			Device:    device,
		})
	}
	sort.Slice(drives, func(i, j int) bool { return drives[i].ID < drives[j].ID })
	return drives
}

// ParseDiscInfo builds a disc inventory from CINFO/TINFO robot output. Lines
// that do not parse are counted in Skipped rather than failing the inventory.
func ParseDiscInfo(lines []string) DiscInfo {
	type titleData struct {
		index    int
		name     string
		duration int
		size     string
		bytes    int64
		chapters int
		fileName string
	}

	info := DiscInfo{}
	results := make(map[int]*titleData)
	var volumeName string

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "CINFO:"):
			parts := strings.SplitN(strings.TrimPrefix(trimmed, "CINFO:"), ",", 3)
			if len(parts) < 3 {
				info.Skipped++
				continue
			}
			attr, err := strconv.Atoi(strings.TrimSpace(parts[0]))
			if err != nil {
				info.Skipped++
				continue
			}
			value := unquote(parts[2])
			switch attr {
			case cinfoDiscName:
				if value != "" {
					info.Name = value
				}
			case cinfoVolumeName:
				volumeName = value
			}
		case strings.HasPrefix(trimmed, "TINFO:"):
			parts := strings.SplitN(strings.TrimPrefix(trimmed, "TINFO:"), ",", 4)
			if len(parts) < 4 {
				info.Skipped++
				continue
			}
			index, err := strconv.Atoi(strings.TrimSpace(parts[0]))
			if err != nil {
				info.Skipped++
				continue
			}
			attr, err := strconv.Atoi(strings.TrimSpace(parts[1]))
			if err != nil {
				info.Skipped++
				continue
			}
			value := unquote(parts[3])
			entry, ok := results[index]
			if !ok {
				entry = &titleData{index: index}
				results[index] = entry
			}
			switch attr {
			case attrName:
				entry.name = value
			case attrChapters:
				if n, err := strconv.Atoi(value); err == nil {
					entry.chapters = n
				}
			case attrDuration:
				entry.duration = parseDuration(value)
			case attrSize:
				entry.size = value
			case attrBytes:
				if n, err := strconv.ParseInt(value, 10, 64); err == nil {
					entry.bytes = n
				}
			case attrOutputName:
				entry.fileName = value
			}
		}
	}

	if info.Name == "" {
		info.Name = volumeName
	}

	indexes := make([]int, 0, len(results))
	for index := range results {
		indexes = append(indexes, index)
	}
	sort.Ints(indexes)

	info.Titles = make([]TitleInfo, 0, len(indexes))
	for _, index := range indexes {
		entry := results[index]
		info.Titles = append(info.Titles, TitleInfo{
			Index:    entry.index,
			Name:     entry.name,
			Duration: entry.duration,
			Size:     entry.size,
			Bytes:    entry.bytes,
			Chapters: entry.chapters,
			FileName: entry.fileName,
		})
	}
	return info
}

// ParseProgress extracts a progress update from a PRGV: robot line.
func ParseProgress(line string) (ProgressUpdate, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "PRGV:") {
		return ProgressUpdate{}, false
	}
	parts := strings.Split(strings.TrimPrefix(line, "PRGV:"), ",")
	if len(parts) < 3 {
		return ProgressUpdate{}, false
	}
	total, totalErr := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	maximum, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil || maximum <= 0 {
		return ProgressUpdate{}, false
	}
	if totalErr != nil {
		total = 0
	}
	percent := (total / maximum) * 100
	return ProgressUpdate{Stage: "Ripping", Percent: percent}, true
}

// ParseMessage extracts a MSG: diagnostic line.
func ParseMessage(line string) (Message, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "MSG:") {
		return Message{}, false
	}
	fields := splitRobotFields(strings.TrimPrefix(line, "MSG:"))
	if len(fields) < 4 {
		return Message{}, false
	}
	code, err := strconv.Atoi(fields[0])
	if err != nil {
		return Message{}, false
	}
	return Message{Code: code, Text: fields[3]}, true
}

// IsFatalMessage reports whether a makemkvcon output line indicates an
// unrecoverable rip failure even when the process exits zero.
func IsFatalMessage(line string) bool {
	return strings.Contains(line, "Failed to save")
}

// splitRobotFields splits comma separated robot output, keeping quoted fields
// intact and stripping their quotes.
func splitRobotFields(payload string) []string {
	fields := make([]string, 0, 8)
	var sb strings.Builder
	inQuotes := false
	for i := 0; i < len(payload); i++ {
		ch := payload[i]
		switch {
		case ch == '"':
			inQuotes = !inQuotes
		case ch == ',' && !inQuotes:
			fields = append(fields, strings.TrimSpace(sb.String()))
			sb.Reset()
		default:
			sb.WriteByte(ch)
		}
	}
	fields = append(fields, strings.TrimSpace(sb.String()))
	return fields
}

func unquote(value string) string {
	return strings.Trim(strings.TrimSpace(value), "\"")
}

func parseDuration(value string) int {
	clean := strings.Trim(value, "\"")
	if clean == "" {
		return 0
	}
	segments := strings.Split(clean, ":")
	if len(segments) != 3 {
		return 0
	}
	hours, err := strconv.Atoi(segments[0])
	if err != nil {
		return 0
	}
	minutes, err := strconv.Atoi(segments[1])
	if err != nil {
		return 0
	}
	seconds, err := strconv.Atoi(segments[2])
	if err != nil {
		return 0
	}
	return hours*3600 + minutes*60 + seconds
}
