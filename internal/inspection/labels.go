package inspection

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"ripcord/internal/services/makemkv"
)

var titleCaser = cases.Title(language.English)

// DisplayLabel converts a raw volume label like "THE_MATRIX" into a readable
// form ("The Matrix"). Labels that are already mixed case pass through.
func DisplayLabel(raw string) string {
	label := strings.TrimSpace(raw)
	if label == "" {
		return ""
	}
	label = strings.ReplaceAll(label, "_", " ")
	label = strings.Join(strings.Fields(label), " ")
	if label == strings.ToUpper(label) || label == strings.ToLower(label) {
		label = titleCaser.String(strings.ToLower(label))
	}
	return label
}

// OutputDirName returns the per-disc directory name for finished rips.
func OutputDirName(discLabel string) string {
	name := makemkv.SanitizeFileName(DisplayLabel(discLabel))
	if name == "" {
		return "Untitled Disc"
	}
	return name
}

// OutputFileName returns the deterministic file name for one ripped title:
// "<disc label> - Title NN.mkv".
func OutputFileName(discLabel string, titleIndex int) string {
	return fmt.Sprintf("%s - Title %02d.mkv", OutputDirName(discLabel), titleIndex)
}
