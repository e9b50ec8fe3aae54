package wav

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	gowav "github.com/go-audio/wav"

	"github.com/dgnsrekt/lumina-voice/internal/audio"
)

func le32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }
func le16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }

func TestConstants(t *testing.T) {
	if HeaderSize != 44 {
		t.Errorf("HeaderSize = %d, want 44", HeaderSize)
	}
	if FormatPCM != 1 {
		t.Errorf("FormatPCM = %d, want 1", FormatPCM)
	}
	if MimeType != "audio/wav" {
		t.Errorf("MimeType = %q, want audio/wav", MimeType)
	}
}

func TestPutLE16(t *testing.T) {
	tests := []struct {
		name   string
		value  uint16
		expect []byte
	}{
		{"zero", 0, []byte{0x00, 0x00}},
		{"256", 256, []byte{0x00, 0x01}},
		{"max", 0xFFFF, []byte{0xFF, 0xFF}},
		{"mixed", 0x1234, []byte{0x34, 0x12}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := make([]byte, 2)
			PutLE16(b, tt.value)
			if !bytes.Equal(b, tt.expect) {
				t.Errorf("PutLE16(%d) = %v, want %v", tt.value, b, tt.expect)
			}
		})
	}
}

func TestPutLE32(t *testing.T) {
	tests := []struct {
		name   string
		value  uint32
		expect []byte
	}{
		{"zero", 0, []byte{0x00, 0x00, 0x00, 0x00}},
		{"256", 256, []byte{0x00, 0x01, 0x00, 0x00}},
		{"max", 0xFFFFFFFF, []byte{0xFF, 0xFF, 0xFF, 0xFF}},
		{"mixed", 0x12345678, []byte{0x78, 0x56, 0x34, 0x12}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := make([]byte, 4)
			PutLE32(b, tt.value)
			if !bytes.Equal(b, tt.expect) {
				t.Errorf("PutLE32(%d) = %v, want %v", tt.value, b, tt.expect)
			}
		})
	}
}

func TestEncode_Header(t *testing.T) {
	buf := audio.NewSampleBuffer(make([]byte, 6), 24000, 1)
	blob := Encode(buf)
	data := blob.Data

	if len(data) != 50 {
		t.Fatalf("len = %d, want 50", len(data))
	}
	if blob.MimeType != "audio/wav" {
		t.Errorf("MimeType = %q", blob.MimeType)
	}

	checks := []struct {
		name string
		got  uint32
		want uint32
	}{
		{"ChunkSize", le32(data[4:8]), 42},
		{"Subchunk1Size", le32(data[16:20]), 16},
		{"AudioFormat", uint32(le16(data[20:22])), 1},
		{"NumChannels", uint32(le16(data[22:24])), 1},
		{"SampleRate", le32(data[24:28]), 24000},
		{"ByteRate", le32(data[28:32]), 48000},
		{"BlockAlign", uint32(le16(data[32:34])), 2},
		{"BitsPerSample", uint32(le16(data[34:36])), 16},
		{"Subchunk2Size", le32(data[40:44]), 6},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %d, want %d", c.name, c.got, c.want)
		}
	}

	for _, tag := range []struct {
		off  int
		want string
	}{{0, "RIFF"}, {8, "WAVE"}, {12, "fmt "}, {36, "data"}} {
		if got := string(data[tag.off : tag.off+4]); got != tag.want {
			t.Errorf("tag at %d = %q, want %q", tag.off, got, tag.want)
		}
	}
}

func TestEncode_StereoHeader(t *testing.T) {
	buf := audio.NewSampleBuffer(make([]byte, 16), 48000, 2)
	data := Encode(buf).Data

	if got := le32(data[4:8]); got != 36+16 {
		t.Errorf("ChunkSize = %d, want %d", got, 36+16)
	}
	if got := le32(data[28:32]); got != 48000*2*2 {
		t.Errorf("ByteRate = %d, want %d", got, 48000*2*2)
	}
	if got := le16(data[32:34]); got != 4 {
		t.Errorf("BlockAlign = %d, want 4", got)
	}
}

func TestEncode_ZeroFrames(t *testing.T) {
	buf := audio.NewSampleBuffer(nil, 24000, 1)
	data := Encode(buf).Data

	if len(data) != HeaderSize {
		t.Fatalf("len = %d, want %d", len(data), HeaderSize)
	}
	if got := le32(data[40:44]); got != 0 {
		t.Errorf("Subchunk2Size = %d, want 0", got)
	}
	if got := le32(data[4:8]); got != 36 {
		t.Errorf("ChunkSize = %d, want 36", got)
	}
}

func TestEncode_Scenario(t *testing.T) {
	raw := []byte{0x00, 0x00, 0x00, 0x40, 0x00, 0xC0}

	data := Encode(audio.NewSampleBuffer(raw, 24000, 1)).Data

	if !bytes.Equal(data[HeaderSize:], raw) {
		t.Errorf("data = %x, want %x", data[HeaderSize:], raw)
	}
}

func TestEncode_InterleavesChannels(t *testing.T) {
	buf := &audio.SampleBuffer{
		SampleRate: 48000,
		Channels:   2,
		Frames:     2,
		Samples: [][]float32{
			{0.5, -1.0},
			{-0.5, 0},
		},
	}

	data := Encode(buf).Data[HeaderSize:]
	want := []byte{0x00, 0x40, 0x00, 0xC0, 0x00, 0x80, 0x00, 0x00}
	if !bytes.Equal(data, want) {
		t.Errorf("data = %x, want %x", data, want)
	}
}

func TestRoundTrip_AllInt16(t *testing.T) {
	for v := math.MinInt16; v <= math.MaxInt16; v++ {
		in := int16(v)
		if got := EncodeSample(audio.DecodeSample(in)); got != in {
			t.Fatalf("EncodeSample(DecodeSample(%d)) = %d", in, got)
		}
	}
}

func TestRoundTrip_Bytes(t *testing.T) {
	raw := make([]byte, 0, 65536*2)
	for v := math.MinInt16; v <= math.MaxInt16; v++ {
		raw = binary.LittleEndian.AppendUint16(raw, uint16(int16(v)))
	}

	for _, ch := range []int{1, 2, 4} {
		data := Encode(audio.NewSampleBuffer(raw, 24000, ch)).Data
		if !bytes.Equal(data[HeaderSize:], raw) {
			t.Errorf("channels=%d: re-encoded data differs from input", ch)
		}
	}
}

func TestEncodeSample_Clamp(t *testing.T) {
	tests := []struct {
		in   float32
		want int16
	}{
		{2.0, 32767},
		{1.0, 32767},
		{-1.0, -32768},
		{-3.5, -32768},
		{0, 0},
		{float32(math.NaN()), 0},
		{float32(math.Inf(1)), 32767},
		{float32(math.Inf(-1)), -32768},
	}

	for _, tt := range tests {
		if got := EncodeSample(tt.in); got != tt.want {
			t.Errorf("EncodeSample(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestEncode_IndependentDecoder(t *testing.T) {
	raw := []byte{0x00, 0x00, 0x00, 0x40, 0x00, 0xC0, 0xFF, 0x7F}
	data := Encode(audio.NewSampleBuffer(raw, 24000, 1)).Data

	d := gowav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		t.Fatal("go-audio decoder rejected the container")
	}
	pcm, err := d.FullPCMBuffer()
	if err != nil {
		t.Fatalf("FullPCMBuffer() error = %v", err)
	}

	want := []int{0, 16384, -16384, 32767}
	if len(pcm.Data) != len(want) {
		t.Fatalf("decoded %d samples, want %d", len(pcm.Data), len(want))
	}
	for i, w := range want {
		if pcm.Data[i] != w {
			t.Errorf("sample %d = %d, want %d", i, pcm.Data[i], w)
		}
	}
	if pcm.Format.SampleRate != 24000 || pcm.Format.NumChannels != 1 {
		t.Errorf("format = %+v", pcm.Format)
	}
}
