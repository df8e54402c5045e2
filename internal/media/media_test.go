package media

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"newsrelay/internal/model"
)

func TestChoose(t *testing.T) {
	tests := []struct {
		name  string
		image string
		video string
		want  model.Media
	}{
		{name: "nothing", want: model.Media{Kind: model.MediaNone}},
		{name: "image only", image: "https://x/a.jpg", want: model.Media{Kind: model.MediaPhoto, URL: "https://x/a.jpg"}},
		{name: "video beats image", image: "https://x/a.jpg", video: "https://x/v.mp4", want: model.Media{Kind: model.MediaVideo, URL: "https://x/v.mp4"}},
		{name: "hls falls back to image", image: "https://x/a.jpg", video: "https://x/v.M3U8?t=1", want: model.Media{Kind: model.MediaPhoto, URL: "https://x/a.jpg"}},
		{name: "hls alone is no media", video: "https://x/v.m3u8", want: model.Media{Kind: model.MediaNone}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Choose(tt.image, tt.video)); diff != "" {
				t.Errorf("Choose mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFromReference(t *testing.T) {
	tests := []struct {
		ref  string
		want model.MediaKind
	}{
		{ref: "", want: model.MediaNone},
		{ref: "https://x/live.m3u8", want: model.MediaNone},
		{ref: "https://x/clip.webm#t", want: model.MediaVideo},
		{ref: "https://x/pic.png", want: model.MediaPhoto},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, FromReference(tt.ref).Kind); diff != "" {
				t.Errorf("kind mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUpscale(t *testing.T) {
	got := Upscale("https://cdn/img_270X320.jpg")
	if got != "https://cdn/img_676X800.jpg" {
		t.Errorf("Upscale = %q", got)
	}
}
