package audio

import (
	"errors"
	"time"
)

// MIMETypeWAV tags assembled output for the playback/download layer.
const MIMETypeWAV = "audio/wav"

// Assembled is the final playable artifact handed back to the caller.
type Assembled struct {
	Bytes    []byte
	MIMEType string
}

// Assemble concatenates WAV assets into one container. Inputs must share
// framing parameters; each asset's header is stripped and the joined PCM is
// re-framed under a single header. When gap > 0, that much silence is placed
// between adjacent assets (never before the first or after the last).
func Assemble(assets [][]byte, gap time.Duration) (Assembled, error) {
	if len(assets) == 0 {
		return Assembled{}, errors.New("no audio assets to assemble")
	}

	format, err := ContainerFormat(assets[0])
	if err != nil {
		return Assembled{}, err
	}

	var gapPCM []byte
	if gap > 0 {
		frames := int(float64(format.SampleRate) * gap.Seconds())
		gapPCM = make([]byte, frames*format.BlockAlign())
	}

	var joined []byte
	for i, asset := range assets {
		pcm, err := PCMPayload(asset)
		if err != nil {
			return Assembled{}, err
		}
		if i > 0 && len(gapPCM) > 0 {
			joined = append(joined, gapPCM...)
		}
		joined = append(joined, pcm...)
	}

	out, err := EncodeWAV(joined, format)
	if err != nil {
		return Assembled{}, err
	}
	return Assembled{Bytes: out, MIMEType: MIMETypeWAV}, nil
}
