package services

import (
	"testing"

	"github.com/yungbote/studypilot-backend/internal/types"
)

func TestMaterialKindForMime(t *testing.T) {
	cases := []struct {
		name     string
		mimeType string
		fileName string
		want     string
		wantErr  bool
	}{
		{name: "pdf_mime", mimeType: "application/pdf", fileName: "slides", want: types.MaterialKindPDF},
		{name: "pdf_extension", mimeType: "application/octet-stream", fileName: "slides.PDF", want: types.MaterialKindPDF},
		{name: "video", mimeType: "video/mp4", fileName: "lecture.mp4", want: types.MaterialKindVideo},
		{name: "plain_text", mimeType: "text/plain", fileName: "notes", want: types.MaterialKindText},
		{name: "markdown_extension", mimeType: "", fileName: "notes.md", want: types.MaterialKindText},
		{name: "archive_rejected", mimeType: "application/zip", fileName: "bundle.zip", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := materialKindForMime(tc.mimeType, tc.fileName)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("materialKindForMime(%q, %q): expected error, got %q", tc.mimeType, tc.fileName, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("materialKindForMime: %v", err)
			}
			if got != tc.want {
				t.Fatalf("kind: want=%q got=%q", tc.want, got)
			}
		})
	}
}

func TestIsYouTubeURL(t *testing.T) {
	cases := []struct {
		name string
		url  string
		want bool
	}{
		{name: "watch_url", url: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", want: true},
		{name: "short_link", url: "https://youtu.be/dQw4w9WgXcQ", want: true},
		{name: "plain_http", url: "http://youtube.com/watch?v=abc", want: true},
		{name: "other_host", url: "https://vimeo.com/12345", want: false},
		{name: "missing_scheme", url: "youtube.com/watch?v=abc", want: false},
		{name: "ftp_scheme", url: "ftp://youtube.com/watch", want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isYouTubeURL(tc.url); got != tc.want {
				t.Fatalf("isYouTubeURL(%q)=%v, want %v", tc.url, got, tc.want)
			}
		})
	}
}
