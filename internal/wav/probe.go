package wav

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	gowav "github.com/go-audio/wav"
)

// ErrInvalidContainer is returned when a blob is not a readable PCM WAV file.
var ErrInvalidContainer = errors.New("invalid WAV container")

// Info describes a parsed WAV container.
type Info struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Frames     int
	Duration   time.Duration
	// DataOffset is where the PCM bytes start within the blob.
	DataOffset int64
	// DataSize is the declared size of the data chunk.
	DataSize int
}

// Probe reads the container headers of data and locates its PCM chunk.
func Probe(data []byte) (*Info, error) {
	r := bytes.NewReader(data)
	d := gowav.NewDecoder(r)

	d.ReadInfo()
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContainer, err)
	}
	if d.WavAudioFormat != FormatPCM {
		return nil, fmt.Errorf("%w: audio format %d", ErrInvalidContainer, d.WavAudioFormat)
	}
	if d.NumChans < 1 || d.BitDepth < 8 || d.SampleRate == 0 {
		return nil, fmt.Errorf("%w: bad fmt chunk", ErrInvalidContainer)
	}

	if err := d.FwdToPCM(); err != nil || d.PCMChunk == nil {
		return nil, fmt.Errorf("%w: no data chunk", ErrInvalidContainer)
	}

	offset, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContainer, err)
	}

	info := &Info{
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
		DataOffset: offset,
		DataSize:   d.PCMSize,
	}

	frameBytes := info.Channels * info.BitDepth / 8
	avail := len(data) - int(offset)
	if info.DataSize < avail {
		avail = info.DataSize
	}
	if frameBytes > 0 && avail > 0 {
		info.Frames = avail / frameBytes
	}
	info.Duration = time.Duration(info.Frames) * time.Second / time.Duration(info.SampleRate)

	return info, nil
}

// PCM returns the sample bytes of a probed blob.
func (i *Info) PCM(data []byte) []byte {
	end := int(i.DataOffset) + i.Frames*i.Channels*i.BitDepth/8
	if end > len(data) {
		end = len(data)
	}
	return data[i.DataOffset:end]
}
