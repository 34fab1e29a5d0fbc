// ABOUTME: Player pipeline between received frames and the audio output
// ABOUTME: Places decoded frames in a block queue and plays fixed-size periods from it
package stream

import (
	"errors"
	"fmt"
	"time"

	"github.com/Resonate-Protocol/blockq/pkg/audio"
	"github.com/Resonate-Protocol/blockq/pkg/audio/decode"
	"github.com/Resonate-Protocol/blockq/pkg/audio/encode"
	"github.com/Resonate-Protocol/blockq/pkg/audio/output"
	"github.com/Resonate-Protocol/blockq/pkg/memblock"
	"github.com/Resonate-Protocol/blockq/pkg/memblockq"
	"github.com/Resonate-Protocol/blockq/pkg/protocol"
)

// DefaultBuffer is used for zero MaxLengthMs and TargetMs
var DefaultBuffer = protocol.BufferAttr{
	MaxLengthMs: 4000,
	TargetMs:    2000,
	PrebufMs:    -1,
	MinReqMs:    ChunkDurationMs,
	MaxRewindMs: 500,
}

// errNoStream is returned for frames that arrive before stream/start
var errNoStream = errors.New("no stream started")

// pipeline is not safe for concurrent use; the player drives it from one goroutine
type pipeline struct {
	name    string
	buffer  protocol.BufferAttr
	period  time.Duration
	out     output.Output
	opts    []memblockq.Option
	request func(bytes int) error

	wire        audio.Format
	pcm         audio.Format
	decoder     decode.Decoder     // wire payload to samples, nil for PCM
	pack        *encode.PCMEncoder // samples to queue bytes
	unpack      *decode.PCMDecoder // queue bytes to samples
	queue       *memblockq.Queue
	periodBytes int
	samples     []int32
	ended       bool

	stats pipelineStats
}

type pipelineStats struct {
	frames     int64
	badFrames  int64
	late       int64
	trimmed    int64
	played     int64
	starved    int64
	seeks      int64
	flushes    int64
	requested  int64
	outputErrs int64
}

// queueAttr converts millisecond thresholds to bytes of format
func queueAttr(b protocol.BufferAttr, format audio.Format) memblockq.Attr {
	if b.MaxLengthMs == 0 {
		b.MaxLengthMs = DefaultBuffer.MaxLengthMs
	}
	if b.TargetMs == 0 {
		b.TargetMs = DefaultBuffer.TargetMs
	}

	bytes := func(ms int) int {
		return format.DurationToBytes(time.Duration(ms) * time.Millisecond)
	}
	prebuf := -1
	if b.PrebufMs >= 0 {
		prebuf = bytes(b.PrebufMs)
	}
	return memblockq.Attr{
		MaxLength: bytes(b.MaxLengthMs),
		TLength:   bytes(b.TargetMs),
		Prebuf:    prebuf,
		MinReq:    bytes(b.MinReqMs),
		MaxRewind: bytes(b.MaxRewindMs),
	}
}

// start sets up decoding and a fresh queue for a new stream
func (p *pipeline) start(s protocol.StreamStart) error {
	p.close()

	wire := s.Format.Format()
	pcm := wire
	pcm.Codec = "pcm"
	if err := pcm.Validate(); err != nil {
		return fmt.Errorf("invalid stream format: %w", err)
	}

	var err error
	if wire.Codec != "pcm" {
		if p.decoder, err = decode.New(wire); err != nil {
			return fmt.Errorf("failed to create decoder: %w", err)
		}
		if p.pack, err = encode.NewPCM(pcm); err != nil {
			return err
		}
	}
	if p.unpack, err = decode.NewPCM(pcm); err != nil {
		return err
	}

	q, err := memblockq.NewForFormat(p.name, s.StartOffset, queueAttr(p.buffer, pcm), pcm, p.opts...)
	if err != nil {
		return fmt.Errorf("failed to create queue: %w", err)
	}
	if err := p.out.Open(pcm); err != nil {
		q.Free()
		return fmt.Errorf("failed to initialize output: %w", err)
	}

	p.queue = q
	p.wire = wire
	p.pcm = pcm
	p.ended = false
	p.periodBytes = max(pcm.DurationToBytes(p.period), pcm.FrameSize())
	p.samples = make([]int32, p.periodBytes/pcm.SampleSize())

	return p.requestMissing()
}

// frame decodes f and writes it at its stream position
func (p *pipeline) frame(f protocol.Frame) error {
	if p.queue == nil {
		return errNoStream
	}
	p.stats.frames++

	data := f.Data
	if p.decoder != nil {
		samples, err := p.decoder.Decode(f.Data)
		if err != nil {
			p.stats.badFrames++
			return fmt.Errorf("decode error: %w", err)
		}
		data = make([]byte, len(samples)*p.pcm.SampleSize())
		p.pack.EncodeInto(data, samples)
	}
	if len(data) == 0 {
		return nil
	}

	if f.Mode == protocol.FrameAbsolute {
		offset := f.Offset
		// the part already played past is cut off; writing it would move
		// the write index behind the read index
		if ri := p.queue.ReadIndex(); offset < ri {
			if ri-offset >= int64(len(data)) {
				p.stats.late++
				return nil
			}
			data = data[ri-offset:]
			offset = ri
			p.stats.trimmed++
		}
		if err := p.queue.Seek(offset, memblockq.SeekAbsolute, true); err != nil {
			p.stats.badFrames++
			return fmt.Errorf("frame at %d: %w", f.Offset, err)
		}
	}

	c := memblock.ChunkFromBytes(data)
	defer c.Unref()
	if err := p.queue.Push(c); err != nil {
		p.stats.badFrames++
		return fmt.Errorf("frame at %d: %w", f.Offset, err)
	}

	return p.requestMissing()
}

// targetMs returns the target length in effect for new streams
func (p *pipeline) targetMs() int {
	if p.buffer.TargetMs == 0 {
		return DefaultBuffer.TargetMs
	}
	return p.buffer.TargetMs
}

// setBuffer changes the queue thresholds, applying them to a running
// stream at once
func (p *pipeline) setBuffer(b protocol.BufferAttr) error {
	p.buffer = b
	if p.queue == nil {
		return nil
	}
	p.queue.ApplyAttr(queueAttr(b, p.pcm))
	return p.requestMissing()
}

// tick plays one period. Nothing is played while the queue prebuffers or
// once an ended stream has drained.
func (p *pipeline) tick() error {
	if p.queue == nil {
		return nil
	}
	if p.ended && p.queue.Length() == 0 {
		return nil
	}
	if !p.queue.IsReadable() {
		p.stats.starved++
		return nil
	}

	c, err := p.queue.PeekFixedSize(p.periodBytes)
	if err != nil {
		return err
	}
	data := c.Bytes()
	c.Unref()

	n := p.unpack.DecodeInto(p.samples, data)
	if err := p.out.Write(p.samples[:n]); err != nil {
		p.stats.outputErrs++
		return fmt.Errorf("playback error: %w", err)
	}
	p.stats.played += int64(len(data))

	if err := p.queue.Drop(p.periodBytes); err != nil {
		return err
	}
	return p.requestMissing()
}

// seek applies a server-side seek to the write position
func (p *pipeline) seek(s protocol.StreamSeek) error {
	if p.queue == nil {
		return errNoStream
	}
	mode, err := memblockq.ParseSeekMode(s.Mode)
	if err != nil {
		return err
	}
	if err := p.queue.Seek(s.Offset, mode, s.Account); err != nil {
		return err
	}
	p.stats.seeks++
	return p.requestMissing()
}

// flush drops everything queued and waits to prebuffer again
func (p *pipeline) flush() error {
	if p.queue == nil {
		return errNoStream
	}
	p.queue.FlushRead()
	p.stats.flushes++
	return p.requestMissing()
}

// end plays out whatever is queued, even below the prebuffer level
func (p *pipeline) end() {
	p.ended = true
	if p.queue != nil {
		p.queue.PrebufDisable()
	}
}

// requestMissing asks the server for whatever the queue is missing
func (p *pipeline) requestMissing() error {
	if p.ended || p.request == nil {
		return nil
	}
	n := p.queue.PopMissing()
	if n == 0 {
		return nil
	}
	p.stats.requested += int64(n)
	return p.request(n)
}

// state names where the pipeline is for status reports
func (p *pipeline) state() string {
	switch {
	case p.queue == nil:
		return "waiting"
	case p.ended && p.queue.Length() == 0:
		return "ended"
	case p.queue.State() == memblockq.StatePrebuffering:
		return "prebuffering"
	default:
		return "playing"
	}
}

// close releases the queue and codec state
func (p *pipeline) close() {
	if p.queue != nil {
		p.queue.Free()
		p.queue = nil
	}
	if p.decoder != nil {
		p.decoder.Close()
		p.decoder = nil
	}
	p.pack = nil
	p.unpack = nil
}
