// Package media classifies media URLs and picks the delivery shape of a post.
package media

import (
	"regexp"

	"newsrelay/internal/model"
)

var (
	hlsRe   = regexp.MustCompile(`(?i)\.m3u8(\?|#|$)`)
	videoRe = regexp.MustCompile(`(?i)\.(mp4|mov|webm|mkv)(\?|#|$)`)
	mediaRe = regexp.MustCompile(`(?i)\.(m3u8|mp4)(\?|#|$)`)
	sizeRe  = regexp.MustCompile(`270X320|148X320`)
)

// IsHLS reports whether url points at an adaptive-streaming playlist.
func IsHLS(url string) bool {
	return hlsRe.MatchString(url)
}

// IsVideo reports whether url has a known video file extension.
func IsVideo(url string) bool {
	return videoRe.MatchString(url)
}

// IsStream reports whether url looks like a playable media stream or file.
func IsStream(url string) bool {
	return mediaRe.MatchString(url)
}

// Upscale rewrites known thumbnail sizes to the full-size variant.
func Upscale(url string) string {
	return sizeRe.ReplaceAllString(url, "676X800")
}

// Choose picks video over photo over plain text. HLS playlists are not
// deliverable and count as no video.
func Choose(imageURL, videoURL string) model.Media {
	if videoURL != "" && !IsHLS(videoURL) {
		return model.Media{Kind: model.MediaVideo, URL: videoURL}
	}
	if imageURL != "" {
		return model.Media{Kind: model.MediaPhoto, URL: imageURL}
	}
	return model.Media{Kind: model.MediaNone}
}

// FromReference classifies a stored media reference whose kind is unknown.
func FromReference(ref string) model.Media {
	switch {
	case ref == "" || IsHLS(ref):
		return model.Media{Kind: model.MediaNone}
	case IsVideo(ref):
		return model.Media{Kind: model.MediaVideo, URL: ref}
	default:
		return model.Media{Kind: model.MediaPhoto, URL: ref}
	}
}
