// ABOUTME: High-level player connecting to a stream server
// ABOUTME: Runs the queue pipeline on a single goroutine and publishes status snapshots
package stream

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Resonate-Protocol/blockq/pkg/audio/output"
	"github.com/Resonate-Protocol/blockq/pkg/memblockq"
	"github.com/Resonate-Protocol/blockq/pkg/protocol"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// DefaultPeriod is the audio played per output write
	DefaultPeriod = 20 * time.Millisecond

	statusInterval = 250 * time.Millisecond
)

// DefaultFormats are offered when PlayerConfig.Formats is empty, most
// preferred first
var DefaultFormats = []protocol.AudioFormat{
	{Codec: "pcm", Channels: 2, SampleRate: 48000, BitDepth: 24},
	{Codec: "pcm", Channels: 2, SampleRate: 48000, BitDepth: 16},
	{Codec: "pcm", Channels: 2, SampleRate: 44100, BitDepth: 16},
	{Codec: "opus", Channels: 2, SampleRate: 48000, BitDepth: 16},
}

// PlayerConfig holds player configuration
type PlayerConfig struct {
	// ServerAddr is the server address (host:port)
	ServerAddr string

	// Name is the display name for this player
	Name string

	// Buffer holds the queue thresholds in milliseconds
	Buffer protocol.BufferAttr

	// Formats offered to the server; DefaultFormats when empty
	Formats []protocol.AudioFormat

	// Output plays the audio; an oto output when nil
	Output output.Output

	// Period is the audio written to the output per tick (default: 20ms)
	Period time.Duration

	// Volume is the initial volume (0-100, default 100)
	Volume int

	// Registerer receives queue metrics when set
	Registerer prometheus.Registerer

	// OnStatus is called with a snapshot after every status interval
	OnStatus func(Status)

	// OnError is called when errors occur
	OnError func(error)

	// Debug enables queue debug logging
	Debug bool
}

// Status is a snapshot of the player and its queue
type Status struct {
	Connected bool
	Server    string
	Format    string
	State     string // "waiting", "prebuffering", "playing" or "ended"
	Volume    int
	Muted     bool
	Target    time.Duration

	Attr       memblockq.Attr
	Length     int
	Missing    int
	Requested  int64
	ReadIndex  int64
	WriteIndex int64
	Blocks     int
	Buffered   time.Duration

	Queue   memblockq.Stats
	Frames  int64
	Late    int64
	Trimmed int64
	Played  int64
	Starved int64
}

// volumeControl is implemented by outputs with software volume
type volumeControl interface {
	SetVolume(level int)
	SetMuted(muted bool)
}

// Player receives a stream into a block queue and plays it
type Player struct {
	config PlayerConfig
	client *protocol.Client
	pipe   *pipeline

	volume int
	muted  bool

	status   Status
	statusMu sync.RWMutex

	controls chan func()
	running  bool
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewPlayer creates a new player with the given configuration
func NewPlayer(config PlayerConfig) (*Player, error) {
	if config.ServerAddr == "" {
		return nil, fmt.Errorf("server address is required")
	}
	if config.Name == "" {
		config.Name = "blockq player"
	}
	if len(config.Formats) == 0 {
		config.Formats = DefaultFormats
	}
	if config.Output == nil {
		config.Output = output.NewOto()
	}
	if config.Period <= 0 {
		config.Period = DefaultPeriod
	}
	if config.Volume <= 0 || config.Volume > 100 {
		config.Volume = 100
	}

	opts := []memblockq.Option{memblockq.WithDebug(config.Debug)}
	if config.Registerer != nil {
		opts = append(opts, memblockq.WithMetrics(config.Registerer))
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Player{
		config: config,
		volume: config.Volume,
		pipe: &pipeline{
			name:   config.Name,
			buffer: config.Buffer,
			period: config.Period,
			out:    config.Output,
			opts:   opts,
		},
		controls: make(chan func(), 10),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	p.status = Status{State: "waiting", Volume: p.volume}

	return p, nil
}

// Connect establishes connection to the server and starts playback
func (p *Player) Connect() error {
	p.client = protocol.NewClient(protocol.Config{
		ServerAddr:       p.config.ServerAddr,
		ClientID:         uuid.New().String(),
		Name:             p.config.Name,
		SupportedFormats: p.config.Formats,
		Buffer:           p.config.Buffer,
		Debug:            p.config.Debug,
	})

	if err := p.client.Connect(); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	log.Printf("Connected to server: %s", p.config.ServerAddr)

	p.pipe.request = p.client.SendRequest
	p.applyVolume()

	p.running = true
	go p.run()
	return nil
}

// run owns the pipeline and its queue until the player closes or the
// connection drops
func (p *Player) run() {
	defer close(p.done)
	defer p.pipe.close()

	ticker := time.NewTicker(p.config.Period)
	defer ticker.Stop()
	statusTicker := time.NewTicker(statusInterval)
	defer statusTicker.Stop()

	p.publish(true)

	for {
		var err error
		select {
		case <-p.ctx.Done():
			return

		case <-p.client.Done():
			log.Printf("Server connection lost")
			p.publish(false)
			return

		case start := <-p.client.StreamStart:
			log.Printf("Stream starting: %s at offset %d", start.Format.Format(), start.StartOffset)
			err = p.pipe.start(start)
			p.applyVolume()

		case f := <-p.client.Frames:
			err = p.pipe.frame(f)

		case s := <-p.client.StreamSeek:
			err = p.pipe.seek(s)

		case flush := <-p.client.StreamFlush:
			log.Printf("Stream flush: %s", flush.Reason)
			err = p.pipe.flush()

		case end := <-p.client.StreamEnd:
			log.Printf("Stream ended: %s", end.Reason)
			p.pipe.end()

		case cmd := <-p.client.Commands:
			switch cmd.Command {
			case "volume":
				p.volume = min(max(cmd.Volume, 0), 100)
			case "mute":
				p.muted = cmd.Mute
			}
			p.applyVolume()

		case fn := <-p.controls:
			fn()

		case <-ticker.C:
			err = p.pipe.tick()

		case <-statusTicker.C:
			status := p.publish(true)
			if sendErr := p.client.SendState(protocol.ClientState{
				State:       status.State,
				Volume:      status.Volume,
				Muted:       status.Muted,
				QueueLength: status.Length,
				Underruns:   status.Queue.Underruns,
				Overruns:    status.Queue.Overruns,
			}); sendErr != nil {
				err = fmt.Errorf("failed to send state: %w", sendErr)
			}
		}

		if err != nil {
			p.notifyError(err)
		}
	}
}

// publish refreshes the status snapshot and hands it to OnStatus
func (p *Player) publish(connected bool) Status {
	s := Status{
		Connected: connected,
		Server:    p.config.ServerAddr,
		State:     p.pipe.state(),
		Volume:    p.volume,
		Muted:     p.muted,
		Frames:    p.pipe.stats.frames,
		Target:    time.Duration(p.pipe.targetMs()) * time.Millisecond,
		Late:      p.pipe.stats.late,
		Trimmed:   p.pipe.stats.trimmed,
		Played:    p.pipe.stats.played,
		Starved:   p.pipe.stats.starved,
	}
	if q := p.pipe.queue; q != nil {
		s.Format = p.pipe.wire.String()
		s.Attr = q.Attr()
		s.Length = q.Length()
		s.Missing = q.Missing()
		s.Requested = q.Requested()
		s.ReadIndex = q.ReadIndex()
		s.WriteIndex = q.WriteIndex()
		s.Blocks = q.NBlocks()
		s.Buffered = p.pipe.pcm.BytesToDuration(s.Length)
		s.Queue = q.Stats()
	}

	p.statusMu.Lock()
	p.status = s
	p.statusMu.Unlock()

	if p.config.OnStatus != nil {
		p.config.OnStatus(s)
	}
	return s
}

// applyVolume pushes the volume state to the output
func (p *Player) applyVolume() {
	if vc, ok := p.config.Output.(volumeControl); ok {
		vc.SetVolume(p.volume)
		vc.SetMuted(p.muted)
	}
}

// do runs fn on the player goroutine
func (p *Player) do(fn func()) error {
	select {
	case p.controls <- fn:
		return nil
	case <-p.done:
		return fmt.Errorf("player stopped")
	case <-time.After(time.Second):
		return fmt.Errorf("player busy")
	}
}

// SetVolume sets the volume (0-100)
func (p *Player) SetVolume(volume int) error {
	return p.do(func() {
		p.volume = min(max(volume, 0), 100)
		p.applyVolume()
	})
}

// Mute sets the mute state
func (p *Player) Mute(muted bool) error {
	return p.do(func() {
		p.muted = muted
		p.applyVolume()
	})
}

// Rewind replays the last d of audio from the queue's history
func (p *Player) Rewind(d time.Duration) error {
	return p.do(func() {
		if q := p.pipe.queue; q != nil {
			q.Rewind(p.pipe.pcm.DurationToBytes(d))
		}
	})
}

// SetTarget changes the target buffer length. A running stream's queue is
// resized at once and later streams start with the new target.
func (p *Player) SetTarget(target time.Duration) error {
	return p.do(func() {
		b := p.pipe.buffer
		if b.MaxLengthMs == 0 {
			b.MaxLengthMs = DefaultBuffer.MaxLengthMs
		}
		b.TargetMs = min(max(int(target.Milliseconds()), 1), b.MaxLengthMs)
		b.PrebufMs = min(b.PrebufMs, b.TargetMs)
		b.MinReqMs = min(b.MinReqMs, b.TargetMs)
		log.Printf("Target buffer now %dms", b.TargetMs)
		if err := p.pipe.setBuffer(b); err != nil {
			p.notifyError(err)
		}
	})
}

// Status returns the latest status snapshot
func (p *Player) Status() Status {
	p.statusMu.RLock()
	defer p.statusMu.RUnlock()
	return p.status
}

// Done is closed when the player has stopped
func (p *Player) Done() <-chan struct{} {
	return p.done
}

// Close says goodbye to the server and releases all resources
func (p *Player) Close() error {
	if p.client != nil && p.client.IsConnected() {
		p.client.SendGoodbye("shutdown")
	}
	p.cancel()
	if p.running {
		<-p.done
	}
	if p.client != nil {
		p.client.Close()
	}

	return p.config.Output.Close()
}

// notifyError calls the OnError callback if set
func (p *Player) notifyError(err error) {
	if p.config.OnError != nil {
		p.config.OnError(err)
	} else {
		log.Printf("Player error: %v", err)
	}
}
