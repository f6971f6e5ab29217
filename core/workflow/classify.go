// Package workflow decides how a container's audio is recognized and runs it.
package workflow

import (
	"errors"

	"mxfedl/model"
)

var (
	// ErrNoStreamsFound means the container has no audio to work with.
	ErrNoStreamsFound = errors.New("no audio streams found")
	// ErrNoWorkflowMatch means the audio layout fits no known workflow.
	ErrNoWorkflowMatch = errors.New("no workflow matches the audio layout")
	// ErrCollaboratorUnavailable marks an external tool or service that could not serve a call.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
)

// Topology summarizes the audio streams of a container.
type Topology struct {
	AudioStreams []model.StreamDescriptor
	// Layouts holds the channel count of each audio stream, in container order.
	Layouts []int
}

// AudioCount returns the number of audio streams.
func (t Topology) AudioCount() int {
	return len(t.AudioStreams)
}

// Classify extracts the audio topology from a probe result.
func Classify(streams []model.StreamDescriptor) (Topology, error) {
	if len(streams) == 0 {
		return Topology{}, ErrNoStreamsFound
	}
	var topo Topology
	for _, s := range streams {
		if s.Kind != model.StreamAudio {
			continue
		}
		topo.AudioStreams = append(topo.AudioStreams, s)
		topo.Layouts = append(topo.Layouts, s.Channels)
	}
	if len(topo.AudioStreams) == 0 {
		return Topology{}, ErrNoStreamsFound
	}
	return topo, nil
}
