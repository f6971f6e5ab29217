package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"time"

	"mxfedl/model"
)

// ErrToolUnavailable is returned when an external binary is missing.
var ErrToolUnavailable = errors.New("external tool unavailable")

// ffprobeOutput defines the structure for ffprobe JSON output.
type ffprobeOutput struct {
	Streams []struct {
		Index     int    `json:"index"`
		CodecName string `json:"codec_name"`
		CodecType string `json:"codec_type"`
		Channels  int    `json:"channels"`
	} `json:"streams"`
}

// Prober lists the elementary streams of a container with ffprobe.
type Prober struct {
	ffprobePath string
	timeout     time.Duration
}

// NewProber creates a Prober. A zero timeout means no limit beyond ctx.
func NewProber(ffprobePath string, timeout time.Duration) *Prober {
	if strings.TrimSpace(ffprobePath) == "" {
		ffprobePath = "ffprobe"
	}
	return &Prober{ffprobePath: ffprobePath, timeout: timeout}
}

// Probe returns the streams of inputFile in container order. Any failure,
// including a missing binary or unreadable output, yields no streams and an error.
func (p *Prober) Probe(ctx context.Context, inputFile string) ([]model.StreamDescriptor, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	args := []string{
		"-v", "error",
		"-hide_banner",
		"-show_streams",
		"-of", "json",
		"--", inputFile,
	}
	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("ffprobe %s: %w", p.ffprobePath, ErrToolUnavailable)
		}
		return nil, fmt.Errorf("ffprobe execution failed for %s: %w\nFFprobe Error: %s", inputFile, err, stderr.String())
	}

	streams, err := ParseProbeOutput(out.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output for %s: %w", inputFile, err)
	}
	return streams, nil
}

// ParseProbeOutput converts ffprobe's JSON into stream descriptors.
func ParseProbeOutput(data []byte) ([]model.StreamDescriptor, error) {
	var probeData ffprobeOutput
	if err := json.Unmarshal(data, &probeData); err != nil {
		return nil, err
	}
	streams := make([]model.StreamDescriptor, 0, len(probeData.Streams))
	for _, s := range probeData.Streams {
		kind := model.StreamData
		switch strings.ToLower(s.CodecType) {
		case "audio":
			kind = model.StreamAudio
		case "video":
			kind = model.StreamVideo
		}
		streams = append(streams, model.StreamDescriptor{
			Index:     s.Index,
			Kind:      kind,
			CodecName: s.CodecName,
			Channels:  s.Channels,
		})
	}
	return streams, nil
}
