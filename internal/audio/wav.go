package audio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// HeaderSize is the canonical RIFF/WAVE header length for a single PCM data
// chunk. Anything shorter cannot be a playable container.
const HeaderSize = 44

// ErrShortContainer is returned for WAV byte sequences smaller than the
// canonical header, indicating corrupt or empty encoding.
var ErrShortContainer = errors.New("wav container shorter than 44-byte header")

// Format describes raw PCM framing parameters.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// DefaultFormat matches the speech provider's declared output: 24 kHz mono
// 16-bit signed little-endian PCM.
var DefaultFormat = Format{SampleRate: 24000, Channels: 1, BitsPerSample: 16}

// BlockAlign is the byte width of one sample frame.
func (f Format) BlockAlign() int {
	return f.Channels * f.BitsPerSample / 8
}

// ByteRate is the PCM throughput in bytes per second.
func (f Format) ByteRate() int {
	return f.SampleRate * f.BlockAlign()
}

func (f Format) validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("invalid channel count %d", f.Channels)
	}
	if f.BitsPerSample <= 0 || f.BitsPerSample%8 != 0 {
		return fmt.Errorf("invalid bits per sample %d", f.BitsPerSample)
	}
	return nil
}

// ValidatePCM checks that a raw PCM payload is frame-aligned for the format.
// A misaligned payload means the provider's declared format and the actual
// bytes disagree, which would otherwise surface as garbled playback.
func ValidatePCM(pcm []byte, f Format) error {
	if err := f.validate(); err != nil {
		return err
	}
	if align := f.BlockAlign(); len(pcm)%align != 0 {
		return fmt.Errorf("pcm payload %d bytes is not aligned to %d-byte frames", len(pcm), align)
	}
	return nil
}

// EncodeWAV wraps a raw PCM payload in a WAV container.
func EncodeWAV(pcm []byte, f Format) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(HeaderSize + len(pcm))
	if err := WriteWAVTo(&buf, pcm, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteWAVTo writes pcm to out as a WAV stream. The payload is copied
// verbatim; no resampling or transcoding happens here.
func WriteWAVTo(out io.Writer, pcm []byte, f Format) error {
	if err := ValidatePCM(pcm, f); err != nil {
		return err
	}

	dataSize := uint32(len(pcm))
	w := bufio.NewWriter(out)

	// RIFF header.
	if _, err := w.WriteString("RIFF"); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(HeaderSize-8)+dataSize); err != nil {
		return err
	}
	if _, err := w.WriteString("WAVE"); err != nil {
		return err
	}

	// fmt chunk.
	if _, err := w.WriteString("fmt "); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(16)); err != nil {
		return err
	}
	// Format tag 1 = integer PCM.
	if err := binary.Write(w, binary.LittleEndian, uint16(1)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(f.Channels)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(f.SampleRate)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(f.ByteRate())); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(f.BlockAlign())); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(f.BitsPerSample)); err != nil {
		return err
	}

	// data chunk.
	if _, err := w.WriteString("data"); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, dataSize); err != nil {
		return err
	}
	if _, err := w.Write(pcm); err != nil {
		return err
	}
	return w.Flush()
}

// Silence returns a WAV container holding d worth of zero-valued samples in
// the given format. Used for inter-speaker pacing in assembled audio.
func Silence(d time.Duration, f Format) ([]byte, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	if d < 0 {
		d = 0
	}
	frames := int(float64(f.SampleRate) * d.Seconds())
	pcm := make([]byte, frames*f.BlockAlign())
	return EncodeWAV(pcm, f)
}

// ValidateContainer rejects byte sequences that cannot hold a canonical
// header plus consistent chunk sizes.
func ValidateContainer(wav []byte) error {
	if len(wav) < HeaderSize {
		return ErrShortContainer
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return errors.New("missing RIFF/WAVE markers")
	}
	if string(wav[36:40]) != "data" {
		return errors.New("missing data chunk marker")
	}
	dataSize := binary.LittleEndian.Uint32(wav[40:44])
	if int(dataSize) != len(wav)-HeaderSize {
		return fmt.Errorf("data chunk declares %d bytes, container carries %d", dataSize, len(wav)-HeaderSize)
	}
	return nil
}

// PCMPayload returns the raw PCM bytes of a canonical WAV container.
func PCMPayload(wav []byte) ([]byte, error) {
	if err := ValidateContainer(wav); err != nil {
		return nil, err
	}
	return wav[HeaderSize:], nil
}

// ContainerFormat reads the framing parameters back out of a WAV header.
func ContainerFormat(wav []byte) (Format, error) {
	if err := ValidateContainer(wav); err != nil {
		return Format{}, err
	}
	return Format{
		SampleRate:    int(binary.LittleEndian.Uint32(wav[24:28])),
		Channels:      int(binary.LittleEndian.Uint16(wav[22:24])),
		BitsPerSample: int(binary.LittleEndian.Uint16(wav[34:36])),
	}, nil
}
