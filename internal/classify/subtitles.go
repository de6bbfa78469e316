package classify

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"reconform/internal/media/ffprobe"
)

// Extraction identifies one text subtitle track and where its sidecar
// file goes.
type Extraction struct {
	StreamIndex int
	// Language is the normalized tag ("en", "pt") or "" when the
	// track is untagged.
	Language string
	// Sidecar is the destination path, filled in by AssignSidecars.
	Sidecar string
}

// Text subtitle codecs ffmpeg can convert to SRT. Bitmap formats
// (pgssub, dvdsub) are skipped.
var textSubtitleCodecs = map[string]bool{
	"subrip":   true,
	"srt":      true,
	"ass":      true,
	"ssa":      true,
	"mov_text": true,
	"text":     true,
	"webvtt":   true,
}

// IsTextSubtitle reports whether the stream is a text subtitle track
// that can be extracted to an SRT sidecar.
func IsTextSubtitle(stream ffprobe.Stream) bool {
	if !stream.IsSubtitle() {
		return false
	}
	if textSubtitleCodecs[strings.ToLower(stream.CodecName)] {
		return true
	}
	return strings.HasPrefix(strings.ToUpper(stream.CodecTag), "S_TEXT")
}

// NormalizeLanguage canonicalizes a container language tag ("eng",
// "pt-BR") to its base form. Unrecognized tags are kept lowercased so
// the sidecar still carries whatever hint the container had.
func NormalizeLanguage(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" || strings.EqualFold(tag, "und") {
		return ""
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return strings.ToLower(tag)
	}
	base, confidence := parsed.Base()
	if confidence == language.No {
		return strings.ToLower(tag)
	}
	return base.String()
}

// AssignSidecars fills each extraction's Sidecar path next to the
// source file. Names collide when a file carries several tracks in
// the same language; later tracks get a numeric suffix. The exists
// probe is injectable for tests and defaults to an os.Stat check.
func AssignSidecars(source string, extractions []Extraction, exists func(string) bool) []Extraction {
	if exists == nil {
		exists = func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		}
	}

	base := strings.TrimSuffix(source, filepath.Ext(source))
	claimed := make(map[string]bool)
	assigned := make([]Extraction, len(extractions))
	for i, extraction := range extractions {
		label := extraction.Language
		if label == "" {
			label = strconv.Itoa(extraction.StreamIndex)
		}
		candidate := base + "." + label + ".srt"
		for suffix := 1; claimed[candidate] || exists(candidate); suffix++ {
			candidate = base + "." + label + strconv.Itoa(suffix) + ".srt"
		}
		claimed[candidate] = true
		extraction.Sidecar = candidate
		assigned[i] = extraction
	}
	return assigned
}
