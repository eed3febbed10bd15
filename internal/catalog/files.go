package catalog

import (
	"fmt"
	"time"

	"google.golang.org/api/drive/v3"
)

// MaxFileSize is the inclusive upper bound on files eligible for
// summarization: 125 MiB.
const MaxFileSize = 125 << 20

// FileSummary is a read-only view of one catalog entry, refreshed on
// every listing.
type FileSummary struct {
	ID           string
	Name         string
	MimeType     string
	SizeBytes    int64
	Size         string // human-readable, "N/A" when unknown
	TypeLabel    string
	CreatedDate  string
	ModifiedDate string
	WebViewLink  string
}

// IsSizeValid reports whether a file of the given size may be submitted.
// The bound is inclusive.
func IsSizeValid(sizeBytes int64) bool {
	return sizeBytes <= MaxFileSize
}

// supported media types and their display labels.
var typeLabels = map[string]string{
	"audio/m4a":  "Audio (M4A)",
	"audio/mpeg": "Audio (MP3)",
	"audio/mp3":  "Audio (MP3)",
	"audio/mp4":  "Audio (MP4)",
	"video/mp4":  "Video (MP4)",
}

// TypeLabel returns the display label for a supported mime type.
func TypeLabel(mimeType string) string {
	if label, ok := typeLabels[mimeType]; ok {
		return label
	}
	return "Unknown"
}

// FormatSize renders a byte count as a short human-readable string.
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "N/A"
	}
	units := []string{"B", "KB", "MB", "GB"}
	size := float64(bytes)
	unit := 0
	for size >= 1024 && unit < len(units)-1 {
		size /= 1024
		unit++
	}
	return fmt.Sprintf("%.1f %s", size, units[unit])
}

const displayDateFormat = "02 Jan 2006"

func formatDate(rfc3339 string) string {
	t, err := time.Parse(time.RFC3339, rfc3339)
	if err != nil {
		return ""
	}
	return t.Format(displayDateFormat)
}

func toSummary(f *drive.File) FileSummary {
	return FileSummary{
		ID:           f.Id,
		Name:         f.Name,
		MimeType:     f.MimeType,
		SizeBytes:    f.Size,
		Size:         FormatSize(f.Size),
		TypeLabel:    TypeLabel(f.MimeType),
		CreatedDate:  formatDate(f.CreatedTime),
		ModifiedDate: formatDate(f.ModifiedTime),
		WebViewLink:  f.WebViewLink,
	}
}
