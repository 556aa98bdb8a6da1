package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavBitDepth  = 16
	wavPCMFormat = 1
	pcm16Max     = 32767
)

// ErrInvalidWAV is returned when data is not a readable PCM WAV stream.
var ErrInvalidWAV = errors.New("audio: invalid WAV data")

// WriteWAV encodes samples as 16-bit mono PCM to w.
func WriteWAV(w io.WriteSeeker, samples []float32, sampleRate int) error {
	if sampleRate <= 0 {
		return ErrInvalidSampleRate
	}
	enc := wav.NewEncoder(w, sampleRate, wavBitDepth, 1, wavPCMFormat)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           toPCM16(samples),
		SourceBitDepth: wavBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav samples: %w", err)
	}
	return enc.Close()
}

// WriteWAVFile writes samples to a new WAV file at path, replacing any existing file.
func WriteWAVFile(path string, samples []float32, sampleRate int) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return WriteWAV(f, samples, sampleRate)
}

// EncodeWAV returns samples as an in-memory WAV file.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	ws := &writeSeeker{}
	if err := WriteWAV(ws, samples, sampleRate); err != nil {
		return nil, err
	}
	return ws.buf, nil
}

// ReadWAV decodes a PCM WAV stream into a mono buffer.
// Multi-channel input is downmixed by averaging.
func ReadWAV(r io.ReadSeeker) (*Buffer, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrInvalidWAV
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}
	channels := int(dec.NumChans)
	if channels < 1 {
		channels = 1
	}
	depth := int(dec.BitDepth)
	if depth <= 0 {
		depth = wavBitDepth
	}
	scale := float32(int64(1) << uint(depth-1))
	// 8-bit PCM is unsigned with silence at 128; wider depths are signed.
	offset := 0
	if depth == 8 {
		offset = 128
	}

	frames := len(pcm.Data) / channels
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += float32(pcm.Data[i*channels+c]-offset) / scale
		}
		samples[i] = sum / float32(channels)
	}
	return &Buffer{Samples: samples, SampleRate: int(dec.SampleRate)}, nil
}

// DecodeWAV decodes an in-memory WAV file.
func DecodeWAV(data []byte) (*Buffer, error) {
	return ReadWAV(bytes.NewReader(data))
}

// ReadWAVFile decodes the WAV file at path.
func ReadWAVFile(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadWAV(f)
}

func toPCM16(samples []float32) []int {
	out := make([]int, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		out[i] = int(s * pcm16Max)
	}
	return out
}

// writeSeeker is an in-memory io.WriteSeeker; the WAV encoder seeks back to
// patch chunk sizes once all samples are written.
type writeSeeker struct {
	buf []byte
	pos int
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	end := w.pos + len(p)
	if end > len(w.buf) {
		if end > cap(w.buf) {
			grown := make([]byte, end, 2*end)
			copy(grown, w.buf)
			w.buf = grown
		} else {
			w.buf = w.buf[:end]
		}
	}
	copy(w.buf[w.pos:], p)
	w.pos = end
	return len(p), nil
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(w.pos) + offset
	case io.SeekEnd:
		abs = int64(len(w.buf)) + offset
	default:
		return 0, fmt.Errorf("audio: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("audio: negative seek position %d", abs)
	}
	w.pos = int(abs)
	return abs, nil
}
