package catalog

import "testing"

func TestIsSizeValid_Boundary(t *testing.T) {
	tests := []struct {
		name string
		size int64
		want bool
	}{
		{"exactly 125 MiB", 131072000, true},
		{"125.5 MiB", 131596288, false},
		{"small file", 1024, true},
		{"zero", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSizeValid(tt.size); got != tt.want {
				t.Errorf("IsSizeValid(%d) = %v, want %v", tt.size, got, tt.want)
			}
		})
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "N/A"},
		{512, "512.0 B"},
		{1536, "1.5 KB"},
		{5 << 20, "5.0 MB"},
		{3 << 30, "3.0 GB"},
	}
	for _, tt := range tests {
		if got := FormatSize(tt.bytes); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestTypeLabel(t *testing.T) {
	if got := TypeLabel("audio/mpeg"); got != "Audio (MP3)" {
		t.Errorf("TypeLabel(audio/mpeg) = %q", got)
	}
	if got := TypeLabel("application/pdf"); got != "Unknown" {
		t.Errorf("TypeLabel(application/pdf) = %q, want Unknown", got)
	}
}
