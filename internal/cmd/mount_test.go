package cmd

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPathsOverlap(t *testing.T) {
	tests := []struct {
		name     string
		path1    string
		path2    string
		expected bool
	}{
		{
			name:     "identical paths",
			path1:    "/tmp/storage",
			path2:    "/tmp/storage",
			expected: true,
		},
		{
			name:     "path1 contains path2",
			path1:    "/tmp/storage/data",
			path2:    "/tmp/storage",
			expected: true,
		},
		{
			name:     "path2 contains path1",
			path1:    "/tmp/storage",
			path2:    "/tmp/storage/mount",
			expected: true,
		},
		{
			name:     "completely separate paths",
			path1:    "/tmp/storage",
			path2:    "/mnt/mount",
			expected: false,
		},
		{
			name:     "sibling directories",
			path1:    "/tmp/storage",
			path2:    "/tmp/mount",
			expected: false,
		},
		{
			name:     "relative paths - overlapping",
			path1:    "storage",
			path2:    "storage/mount",
			expected: true,
		},
		{
			name:     "relative paths - separate",
			path1:    "storage",
			path2:    "mount",
			expected: false,
		},
		{
			name:     "shared name prefix is not nesting",
			path1:    "/tmp/store",
			path2:    "/tmp/storage",
			expected: false,
		},
		{
			name:     "child whose name starts with dots",
			path1:    "/a/..b",
			path2:    "/a",
			expected: true,
		},
		{
			name:     "sibling whose name contains dots",
			path1:    "/a..b",
			path2:    "/a",
			expected: false,
		},
		{
			name:     "trailing slash",
			path1:    "/tmp/storage/",
			path2:    "/tmp/storage",
			expected: true,
		},
		{
			name:     "dot-dot resolves to a sibling",
			path1:    "/tmp/storage/../mount",
			path2:    "/tmp/storage",
			expected: false,
		},
		{
			name:     "dot-dot resolves into the store",
			path1:    "/tmp/mount/../storage/mnt",
			path2:    "/tmp/storage",
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := pathsOverlap(tt.path1, tt.path2)
			if result != tt.expected {
				t.Errorf("pathsOverlap(%q, %q) = %v, expected %v", tt.path1, tt.path2, result, tt.expected)
			}
		})
	}
}

func TestPathsOverlapMixesRelativeAndAbsolute(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}

	tests := []struct {
		name     string
		path1    string
		path2    string
		expected bool
	}{
		{"relative store inside absolute mount", "storage", wd, true},
		{"absolute mount inside relative store", "storage", filepath.Join(wd, "storage", "mnt"), true},
		{"relative sibling of absolute path", "mount", filepath.Join(wd, "storage"), false},
		{"dot is the working directory", ".", wd, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pathsOverlap(tt.path1, tt.path2); got != tt.expected {
				t.Errorf("pathsOverlap(%q, %q) = %v, expected %v", tt.path1, tt.path2, got, tt.expected)
			}
		})
	}
}
