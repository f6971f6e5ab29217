package audio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// PCM holds interleaved signed 16-bit samples.
type PCM struct {
	SampleRate int
	Channels   int
	Samples    []int16
}

// Frames returns the number of sample frames (one sample per channel).
func (p *PCM) Frames() int {
	if p.Channels == 0 {
		return 0
	}
	return len(p.Samples) / p.Channels
}

// DurationMs returns the length of the audio in milliseconds.
func (p *PCM) DurationMs() int64 {
	if p.SampleRate == 0 {
		return 0
	}
	return int64(p.Frames()) * 1000 / int64(p.SampleRate)
}

// Slice returns the audio between two millisecond offsets. The result shares
// the underlying sample buffer.
func (p *PCM) Slice(startMs, endMs int64) *PCM {
	from := p.frameAt(startMs)
	to := p.frameAt(endMs)
	if to < from {
		to = from
	}
	return &PCM{
		SampleRate: p.SampleRate,
		Channels:   p.Channels,
		Samples:    p.Samples[from*p.Channels : to*p.Channels],
	}
}

func (p *PCM) frameAt(ms int64) int {
	f := int(ms * int64(p.SampleRate) / 1000)
	if f < 0 {
		return 0
	}
	if n := p.Frames(); f > n {
		return n
	}
	return f
}

// DBFS returns the RMS level relative to full scale. Silence is -Inf.
func (p *PCM) DBFS() float64 {
	if len(p.Samples) == 0 {
		return math.Inf(-1)
	}
	var sum float64
	for _, s := range p.Samples {
		v := float64(s)
		sum += v * v
	}
	return rmsToDBFS(math.Sqrt(sum / float64(len(p.Samples))))
}

func rmsToDBFS(rms float64) float64 {
	if rms == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms/32768)
}

// ReadWAV loads a 16-bit PCM WAV file.
func ReadWAV(path string) (*PCM, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	header := make([]byte, 12)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("read wav header %s: %w", path, err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return nil, errors.New("not a WAV file")
	}

	var (
		format        uint16
		channels      uint16
		sampleRate    uint32
		bitsPerSample uint16
	)
	for {
		var chunkHeader [8]byte
		if _, err := io.ReadFull(r, chunkHeader[:]); err != nil {
			return nil, fmt.Errorf("read wav chunk %s: %w", path, err)
		}
		chunkID := string(chunkHeader[0:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])

		switch chunkID {
		case "fmt ":
			buf := make([]byte, chunkSize)
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, err
			}
			if len(buf) < 16 {
				return nil, errors.New("invalid fmt chunk")
			}
			format = binary.LittleEndian.Uint16(buf[0:2])
			channels = binary.LittleEndian.Uint16(buf[2:4])
			sampleRate = binary.LittleEndian.Uint32(buf[4:8])
			bitsPerSample = binary.LittleEndian.Uint16(buf[14:16])
			if chunkSize%2 == 1 {
				if _, err := r.Discard(1); err != nil {
					return nil, err
				}
			}
		case "data":
			if channels == 0 || sampleRate == 0 {
				return nil, errors.New("missing audio format information")
			}
			// 1 = PCM, 0xFFFE = WAVE_FORMAT_EXTENSIBLE (ffmpeg uses it for >2 channels)
			if (format != 1 && format != 0xFFFE) || bitsPerSample != 16 {
				return nil, fmt.Errorf("unsupported wav encoding: format=%d bits=%d", format, bitsPerSample)
			}
			data, err := readData(r, chunkSize)
			if err != nil {
				return nil, err
			}
			samples := make([]int16, len(data)/2)
			for i := range samples {
				samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
			}
			return &PCM{SampleRate: int(sampleRate), Channels: int(channels), Samples: samples}, nil
		default:
			skip := int(chunkSize)
			if skip%2 == 1 {
				skip++
			}
			if _, err := r.Discard(skip); err != nil {
				return nil, err
			}
		}
	}
}

// readData reads a data chunk. ffmpeg writes 0xFFFFFFFF as the size when it
// streams to a pipe, in which case everything up to EOF is audio.
func readData(r io.Reader, size uint32) ([]byte, error) {
	if size == 0xFFFFFFFF || size == 0 {
		return io.ReadAll(r)
	}
	data := make([]byte, size)
	n, err := io.ReadFull(r, data)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	return data[:n-n%2], nil
}

// WriteWAV stores p as a canonical 16-bit PCM WAV file.
func WriteWAV(path string, p *PCM) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)

	dataSize := uint32(len(p.Samples) * 2)
	blockAlign := uint16(p.Channels * 2)
	byteRate := uint32(p.SampleRate) * uint32(blockAlign)

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], 36+dataSize)
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1)
	binary.LittleEndian.PutUint16(header[22:24], uint16(p.Channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(p.SampleRate))
	binary.LittleEndian.PutUint32(header[28:32], byteRate)
	binary.LittleEndian.PutUint16(header[32:34], blockAlign)
	binary.LittleEndian.PutUint16(header[34:36], 16)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], dataSize)

	if _, err := w.Write(header); err != nil {
		f.Close()
		return err
	}
	buf := make([]byte, 2)
	for _, s := range p.Samples {
		binary.LittleEndian.PutUint16(buf, uint16(s))
		if _, err := w.Write(buf); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WAVDurationMs reads only the header of a PCM WAV file to compute its length.
func WAVDurationMs(path string) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	header := make([]byte, 12)
	if _, err := io.ReadFull(file, header); err != nil {
		return 0, err
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return 0, errors.New("not a WAV file")
	}

	var byteRate uint32
	for {
		var chunkHeader [8]byte
		if _, err := io.ReadFull(file, chunkHeader[:]); err != nil {
			return 0, err
		}
		chunkID := string(chunkHeader[0:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])

		switch chunkID {
		case "fmt ":
			buf := make([]byte, chunkSize)
			if _, err := io.ReadFull(file, buf); err != nil {
				return 0, err
			}
			if len(buf) < 16 {
				return 0, errors.New("invalid fmt chunk")
			}
			byteRate = binary.LittleEndian.Uint32(buf[8:12])
			if chunkSize%2 == 1 {
				if _, err := file.Seek(1, io.SeekCurrent); err != nil {
					return 0, err
				}
			}
		case "data":
			if byteRate == 0 {
				return 0, errors.New("missing audio format information")
			}
			size := int64(chunkSize)
			if chunkSize == 0xFFFFFFFF || chunkSize == 0 {
				pos, err := file.Seek(0, io.SeekCurrent)
				if err != nil {
					return 0, err
				}
				info, err := file.Stat()
				if err != nil {
					return 0, err
				}
				size = info.Size() - pos
			}
			return size * 1000 / int64(byteRate), nil
		default:
			skip := int64(chunkSize)
			if skip%2 == 1 {
				skip++
			}
			if _, err := file.Seek(skip, io.SeekCurrent); err != nil {
				return 0, err
			}
		}
	}
}
