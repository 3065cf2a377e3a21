// Package record writes the rendered mix to a FLAC file.
package record

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

const (
	Channels      = 2
	BitsPerSample = 16
	BlockSize     = 4096
	// MinBlockSize is the smallest block flac decoders accept.
	MinBlockSize = 16
)

var ErrClosed = errors.New("recorder closed")

type Recorder struct {
	mu     sync.Mutex
	f      *os.File
	enc    *flac.Encoder
	rate   int
	left   []int32
	right  []int32
	frames uint64
	closed bool
	err    error
}

// Create starts a stereo 16-bit recording at rate.
func Create(path string, rate int) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating recording: %w", err)
	}
	info := &meta.StreamInfo{
		BlockSizeMin:  BlockSize,
		BlockSizeMax:  BlockSize,
		SampleRate:    uint32(rate),
		NChannels:     Channels,
		BitsPerSample: BitsPerSample,
	}
	enc, err := flac.NewEncoder(f, info)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating flac encoder: %w", err)
	}
	enc.EnablePredictionAnalysis(true)
	return &Recorder{
		f:     f,
		enc:   enc,
		rate:  rate,
		left:  make([]int32, 0, BlockSize),
		right: make([]int32, 0, BlockSize),
	}, nil
}

func toPCM(x float64) int32 {
	return int32(math.Max(-1, math.Min(1, x)) * 32767)
}

// Write appends mixed frames, encoding each full block. It matches the
// graph tap signature. The first encode error stops the recording and is
// reported by Close.
func (r *Recorder) Write(samples [][2]float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.err != nil {
		return
	}
	for _, s := range samples {
		r.left = append(r.left, toPCM(s[0]))
		r.right = append(r.right, toPCM(s[1]))
		if len(r.left) == BlockSize {
			if r.err = r.flush(); r.err != nil {
				return
			}
		}
	}
}

// flush encodes the pending block. Callers hold r.mu.
func (r *Recorder) flush() error {
	n := len(r.left)
	if n == 0 {
		return nil
	}
	f := &frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(n),
			SampleRate:    uint32(r.rate),
			Channels:      frame.ChannelsLR,
			BitsPerSample: BitsPerSample,
		},
		Subframes: []*frame.Subframe{
			{SubHeader: frame.SubHeader{Pred: frame.PredVerbatim}, Samples: r.left, NSamples: n},
			{SubHeader: frame.SubHeader{Pred: frame.PredVerbatim}, Samples: r.right, NSamples: n},
		},
	}
	if err := r.enc.WriteFrame(f); err != nil {
		return fmt.Errorf("writing flac frame: %w", err)
	}
	r.frames += uint64(n)
	r.left = make([]int32, 0, BlockSize)
	r.right = make([]int32, 0, BlockSize)
	return nil
}

// Frames counts the stereo frames encoded so far.
func (r *Recorder) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Close encodes the final partial block, padded with silence to
// MinBlockSize, and finishes the file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.closed = true
	err := r.err
	if err == nil {
		for n := len(r.left); n > 0 && n < MinBlockSize; n++ {
			r.left = append(r.left, 0)
			r.right = append(r.right, 0)
		}
		err = r.flush()
	}
	if cerr := r.enc.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("closing flac encoder: %w", cerr)
	}
	if cerr := r.f.Close(); cerr != nil && !errors.Is(cerr, os.ErrClosed) && err == nil {
		err = cerr
	}
	return err
}
