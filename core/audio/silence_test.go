package audio

import (
	"context"
	"math"
	"path/filepath"
	"testing"
)

const testRate = 8000

// buildPCM concatenates alternating tone and silence runs given in milliseconds.
func buildPCM(runs ...int) *PCM {
	p := &PCM{SampleRate: testRate, Channels: 1}
	for i, ms := range runs {
		n := ms * testRate / 1000
		for j := 0; j < n; j++ {
			var v int16
			if i%2 == 0 {
				v = 10000
				if j%2 == 1 {
					v = -10000
				}
			}
			p.Samples = append(p.Samples, v)
		}
	}
	return p
}

func TestDetectSegments(t *testing.T) {
	pcm := buildPCM(15000, 3000, 5000, 3000, 12000)
	got := DetectSegments(pcm, DefaultSilenceOptions())

	want := []Range{
		{StartMs: 0, EndMs: 16000},
		{StartMs: 25000, EndMs: 38000},
	}
	if len(got) != len(want) {
		t.Fatalf("DetectSegments() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("segment %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestDetectSegmentsShortSilenceDoesNotSplit(t *testing.T) {
	pcm := buildPCM(6000, 1500, 6000)
	got := DetectSegments(pcm, DefaultSilenceOptions())
	if len(got) != 1 || got[0].StartMs != 0 || got[0].EndMs != 13500 {
		t.Fatalf("DetectSegments() = %v, want one region covering the file", got)
	}
}

func TestDetectSegmentsAllSilent(t *testing.T) {
	pcm := buildPCM(0, 20000)
	if got := DetectSegments(pcm, DefaultSilenceOptions()); len(got) != 0 {
		t.Fatalf("DetectSegments() on silence = %v, want none", got)
	}
}

func TestSegmenterSplitNamesAndOffsets(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "stream_1.wav")
	if err := WriteWAV(src, buildPCM(15000, 3000, 5000, 3000, 12000)); err != nil {
		t.Fatal(err)
	}

	seg := NewSegmenter(DefaultSilenceOptions(), nil)
	segments, err := seg.Split(context.Background(), src, filepath.Join(dir, "segments"))
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}
	if base := filepath.Base(segments[0].Path); base != "stream_1_segment_1.wav" {
		t.Errorf("first segment = %s", base)
	}
	if base := filepath.Base(segments[1].Path); base != "stream_1_segment_3.wav" {
		t.Errorf("second segment = %s", base)
	}
	if segments[1].OffsetMs != 25000 || segments[1].DurationMs != 13000 {
		t.Errorf("second segment offset/duration = %d/%d", segments[1].OffsetMs, segments[1].DurationMs)
	}

	back, err := ReadWAV(segments[1].Path)
	if err != nil {
		t.Fatal(err)
	}
	if back.DurationMs() != 13000 || back.SampleRate != testRate || back.Channels != 1 {
		t.Errorf("segment wav = %d ms, %d Hz, %d ch", back.DurationMs(), back.SampleRate, back.Channels)
	}
}

func TestNormalizeGain(t *testing.T) {
	tests := []struct {
		level float64
		want  float64
	}{
		{-20, 0},
		{-26, 6},
		{-45, 10},
		{-3, -10},
		{-15, -5},
		{math.Inf(-1), 10},
	}
	for _, tt := range tests {
		if got := NormalizeGain(tt.level); got != tt.want {
			t.Errorf("NormalizeGain(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestPCMDBFS(t *testing.T) {
	p := &PCM{SampleRate: testRate, Channels: 1, Samples: []int16{16384, -16384, 16384, -16384}}
	got := p.DBFS()
	if math.Abs(got-(-6.0206)) > 0.001 {
		t.Fatalf("DBFS() = %v, want about -6.02", got)
	}
}
