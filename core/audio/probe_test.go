package audio

import (
	"context"
	"errors"
	"testing"

	"mxfedl/model"
)

const probeJSON = `{
  "streams": [
    {"index": 0, "codec_name": "mpeg2video", "codec_type": "video"},
    {"index": 1, "codec_name": "pcm_s24le", "codec_type": "audio", "channels": 1},
    {"index": 2, "codec_name": "pcm_s24le", "codec_type": "audio", "channels": 1},
    {"index": 3, "codec_name": "", "codec_type": "data"}
  ]
}`

func TestParseProbeOutput(t *testing.T) {
	streams, err := ParseProbeOutput([]byte(probeJSON))
	if err != nil {
		t.Fatal(err)
	}
	if len(streams) != 4 {
		t.Fatalf("got %d streams, want 4", len(streams))
	}
	want := []model.StreamKind{model.StreamVideo, model.StreamAudio, model.StreamAudio, model.StreamData}
	for i, k := range want {
		if streams[i].Kind != k || streams[i].Index != i {
			t.Errorf("stream %d = %+v, want kind %s", i, streams[i], k)
		}
	}
	if streams[1].Channels != 1 || streams[1].CodecName != "pcm_s24le" {
		t.Errorf("audio stream = %+v", streams[1])
	}
}

func TestProbeMissingBinaryFailsClosed(t *testing.T) {
	p := NewProber("/nonexistent/ffprobe-mxfedl", 0)
	streams, err := p.Probe(context.Background(), "input.mxf")
	if err == nil {
		t.Fatal("expected error for missing ffprobe")
	}
	if !errors.Is(err, ErrToolUnavailable) {
		t.Errorf("err = %v, want ErrToolUnavailable", err)
	}
	if streams != nil {
		t.Fatalf("streams = %v, want nil", streams)
	}
}
