// ABOUTME: Encoder interface and codec selection
// ABOUTME: Common interface for all audio encoders
package encode

import (
	"fmt"

	"github.com/Resonate-Protocol/blockq/pkg/audio"
)

// Encoder encodes PCM int32 samples to a wire payload
type Encoder interface {
	// Encode converts PCM samples to encoded audio data
	Encode(samples []int32) ([]byte, error)

	// Close releases encoder resources
	Close() error
}

// New returns an encoder for format's codec
func New(format audio.Format) (Encoder, error) {
	var (
		e   Encoder
		err error
	)
	switch format.Codec {
	case "pcm":
		e, err = NewPCM(format)
	case "opus":
		e, err = NewOpus(format)
	default:
		err = fmt.Errorf("unsupported codec: %s", format.Codec)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}
