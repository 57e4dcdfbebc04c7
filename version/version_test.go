package version

import (
	"bytes"
	"strings"
	"testing"
)

func TestInfoString(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want string
	}{
		{"version only", Info{Version: "v1.0.0", Commit: "unknown", Date: "unknown"}, "v1.0.0"},
		{"short commit ignored", Info{Version: "v1.0.0", Commit: "abc", Date: "unknown"}, "v1.0.0"},
		{"commit", Info{Version: "v1.0.0", Commit: "0123456789abcdef", Date: "unknown"}, "v1.0.0 (0123456)"},
		{"commit and date", Info{Version: "v1.0.0", Commit: "0123456789abcdef", Date: "2025-01-02"}, "v1.0.0 (0123456, built 2025-01-02)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLinkerValuesWin(t *testing.T) {
	oldV, oldC, oldD := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = oldV, oldC, oldD })

	Version, Commit, Date = "v9.9.9", "feedfacecafebeef", "2030-01-01"
	info := GetInfo()
	if info.Version != "v9.9.9" || info.Commit != "feedfacecafebeef" || info.Date != "2030-01-01" {
		t.Errorf("Unexpected info %+v", info)
	}

	var buf bytes.Buffer
	Fprint(&buf, "kvfs")
	if !strings.HasPrefix(buf.String(), "kvfs version v9.9.9 (feedfac, built 2030-01-01)\n") {
		t.Errorf("Unexpected output %q", buf.String())
	}
}
