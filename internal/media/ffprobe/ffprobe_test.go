package ffprobe

import (
	"encoding/json"
	"testing"
)

const samplePayload = `{
  "streams": [
    {
      "index": 0,
      "codec_name": "h264",
      "codec_type": "video",
      "profile": "Main",
      "bit_rate": "4500000",
      "width": 1920,
      "height": 1080,
      "color_transfer": "smpte2084",
      "color_primaries": "bt2020"
    },
    {
      "index": 1,
      "codec_name": "aac",
      "codec_type": "audio",
      "channels": 2,
      "tags": {"language": "eng"}
    },
    {
      "index": 2,
      "codec_name": "subrip",
      "codec_type": "subtitle",
      "codec_tag_string": "S_TEXT/UTF8",
      "tags": {"language": "por"}
    }
  ],
  "format": {"filename": "movie.mkv", "nb_streams": 3, "duration": "5400.25"}
}`

func decodeSample(t *testing.T) Result {
	t.Helper()
	var result Result
	if err := json.Unmarshal([]byte(samplePayload), &result); err != nil {
		t.Fatalf("decode sample: %v", err)
	}
	return result
}

func TestStreamKinds(t *testing.T) {
	result := decodeSample(t)
	if len(result.VideoStreams()) != 1 || len(result.AudioStreams()) != 1 || len(result.SubtitleStreams()) != 1 {
		t.Fatalf("stream split wrong: %+v", result.Streams)
	}
	video := result.VideoStreams()[0]
	if !video.IsVideo() || video.Profile != "Main" || video.Width != 1920 {
		t.Fatalf("video stream wrong: %+v", video)
	}
	if video.BitRateBPS() != 4500000 {
		t.Fatalf("bitrate = %d", video.BitRateBPS())
	}
}

func TestLanguageTag(t *testing.T) {
	result := decodeSample(t)
	if lang := result.SubtitleStreams()[0].Language(); lang != "por" {
		t.Fatalf("language = %q", lang)
	}
	var untagged Stream
	if untagged.Language() != "" {
		t.Fatal("expected empty language for untagged stream")
	}
}

func TestBitRateUnknown(t *testing.T) {
	stream := Stream{BitRate: ""}
	if stream.BitRateBPS() != 0 {
		t.Fatal("empty bitrate should be 0")
	}
	stream.BitRate = "garbage"
	if stream.BitRateBPS() != 0 {
		t.Fatal("unparseable bitrate should be 0")
	}
}

func TestDurationSeconds(t *testing.T) {
	result := decodeSample(t)
	if result.DurationSeconds() != 5400.25 {
		t.Fatalf("duration = %f", result.DurationSeconds())
	}
}
