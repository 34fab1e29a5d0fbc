// ABOUTME: Integration tests for the stream server
// ABOUTME: Tests creation, format negotiation, credit-based sending and control messages
package stream

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Resonate-Protocol/blockq/pkg/audio"
	"github.com/Resonate-Protocol/blockq/pkg/protocol"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	tests := []struct {
		name      string
		config    ServerConfig
		expectErr bool
	}{
		{
			name: "valid config",
			config: ServerConfig{
				Port:   8928,
				Name:   "Test Server",
				Source: NewTestTone(48000, 2),
			},
		},
		{
			name:      "missing source",
			config:    ServerConfig{Port: 8928, Name: "Test Server"},
			expectErr: true,
		},
		{
			name:   "default port and name",
			config: ServerConfig{Source: NewTestTone(48000, 2)},
		},
		{
			name:      "invalid source format",
			config:    ServerConfig{Source: &finiteSource{format: audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 12}}},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, err := NewServer(tt.config)

			if tt.expectErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if server.config.Port == 0 {
				t.Error("port should have been set to default")
			}
			if server.config.Name == "" {
				t.Error("name should have been set to default")
			}
		})
	}
}

func TestNegotiateFormat(t *testing.T) {
	source := audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 24}

	tests := []struct {
		name      string
		source    audio.Format
		supported []protocol.AudioFormat
		wantWire  string
		wantPCM   string
	}{
		{
			name:      "first pcm match",
			source:    source,
			supported: []protocol.AudioFormat{{Codec: "pcm", Channels: 2, SampleRate: 48000, BitDepth: 16}, {Codec: "pcm", Channels: 2, SampleRate: 48000, BitDepth: 24}},
			wantWire:  "pcm 48000Hz/16bit/2ch",
			wantPCM:   "pcm 48000Hz/16bit/2ch",
		},
		{
			name:      "opus decodes to 16-bit pcm",
			source:    source,
			supported: []protocol.AudioFormat{{Codec: "opus", Channels: 2, SampleRate: 48000, BitDepth: 16}},
			wantWire:  "opus 48000Hz/16bit/2ch",
			wantPCM:   "pcm 48000Hz/16bit/2ch",
		},
		{
			name:      "rate mismatch skipped",
			source:    source,
			supported: []protocol.AudioFormat{{Codec: "pcm", Channels: 2, SampleRate: 44100, BitDepth: 16}, {Codec: "opus", Channels: 2, SampleRate: 48000, BitDepth: 16}},
			wantWire:  "opus 48000Hz/16bit/2ch",
			wantPCM:   "pcm 48000Hz/16bit/2ch",
		},
		{
			name:      "opus needs 48kHz source",
			source:    audio.Format{Codec: "pcm", SampleRate: 44100, Channels: 2, BitDepth: 16},
			supported: []protocol.AudioFormat{{Codec: "opus", Channels: 2, SampleRate: 44100, BitDepth: 16}},
			wantWire:  "pcm 44100Hz/16bit/2ch",
			wantPCM:   "pcm 44100Hz/16bit/2ch",
		},
		{
			name:      "pcm at another rate is resampled",
			source:    audio.Format{Codec: "pcm", SampleRate: 44100, Channels: 2, BitDepth: 16},
			supported: []protocol.AudioFormat{{Codec: "opus", Channels: 2, SampleRate: 48000, BitDepth: 16}, {Codec: "pcm", Channels: 2, SampleRate: 48000, BitDepth: 24}},
			wantWire:  "pcm 48000Hz/24bit/2ch",
			wantPCM:   "pcm 48000Hz/24bit/2ch",
		},
		{
			name:      "no match falls back to source pcm",
			source:    source,
			supported: []protocol.AudioFormat{{Codec: "flac", Channels: 2, SampleRate: 48000, BitDepth: 24}},
			wantWire:  "pcm 48000Hz/24bit/2ch",
			wantPCM:   "pcm 48000Hz/24bit/2ch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire, pcm := negotiateFormat(tt.source, tt.supported)
			assert.Equal(t, tt.wantWire, wire.String())
			assert.Equal(t, tt.wantPCM, pcm.String())
		})
	}
}

// finiteSource produces a fixed number of samples of a constant value
type finiteSource struct {
	mu        sync.Mutex
	format    audio.Format
	remaining int
}

func (f *finiteSource) Read(samples []int32) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remaining == 0 {
		return 0, io.EOF
	}
	n := min(len(samples), f.remaining)
	for i := range samples[:n] {
		samples[i] = 1 << 8
	}
	f.remaining -= n
	return n, nil
}

func (f *finiteSource) Format() audio.Format { return f.format }
func (f *finiteSource) Title() string        { return "finite" }
func (f *finiteSource) Close() error         { return nil }

// startTestServer serves s over httptest. The streaming loop is left to
// the test so sources can be started after players connect.
func startTestServer(t *testing.T, source AudioSource) (*Server, *httptest.Server) {
	t.Helper()
	s, err := NewServer(ServerConfig{Name: "Test Server", Source: source})
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Stop()
		s.shutdown(nil)
		ts.Close()
	})
	return s, ts
}

// dialTestServer performs the handshake and returns the connection and stream/start
func dialTestServer(t *testing.T, ts *httptest.Server, id string, formats []protocol.AudioFormat) (*websocket.Conn, protocol.StreamStart) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + protocol.Path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.WriteJSON(protocol.Message{
		Type: protocol.TypeClientHello,
		Payload: protocol.ClientHello{
			ClientID:         id,
			Name:             "test player " + id,
			Version:          protocol.Version,
			SupportedFormats: formats,
		},
	}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msg := readControl(t, conn)
	require.Equal(t, protocol.TypeServerHello, msg.Type)

	msg = readControl(t, conn)
	require.Equal(t, protocol.TypeStreamStart, msg.Type)
	var start protocol.StreamStart
	require.NoError(t, msg.Decode(&start))

	return conn, start
}

func readControl(t *testing.T, conn *websocket.Conn) protocol.Message {
	t.Helper()
	for {
		kind, data, err := conn.ReadMessage()
		require.NoError(t, err)
		if kind != websocket.TextMessage {
			continue
		}
		var msg protocol.Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) protocol.Frame {
	t.Helper()
	for {
		kind, data, err := conn.ReadMessage()
		require.NoError(t, err)
		if kind != websocket.BinaryMessage {
			continue
		}
		f, err := protocol.DecodeFrame(data)
		require.NoError(t, err)
		return f
	}
}

func sendRequest(t *testing.T, conn *websocket.Conn, bytes int) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(protocol.Message{
		Type:    protocol.TypeStreamRequest,
		Payload: protocol.StreamRequest{Bytes: bytes},
	}))
}

func TestServerCreditFlow(t *testing.T) {
	s, ts := startTestServer(t, NewTestTone(48000, 2))
	conn, start := dialTestServer(t, ts, "credit", []protocol.AudioFormat{testFormat})
	s.startStreaming()

	assert.Equal(t, testFormat, start.Format)
	assert.Equal(t, int64(0), start.StartOffset)

	sendRequest(t, conn, 2*testChunk)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i := 0; i < 2; i++ {
		f := readFrame(t, conn)
		assert.Equal(t, protocol.FrameAbsolute, f.Mode)
		assert.Equal(t, int64(i*testChunk), f.Offset)
		assert.Len(t, f.Data, testChunk)
	}

	// without credit the stream position keeps moving
	require.Eventually(t, func() bool {
		clients := s.Clients()
		return len(clients) == 1 && clients[0].Credit == 0 && clients[0].Offset > 3*testChunk
	}, 2*time.Second, 10*time.Millisecond)

	sendRequest(t, conn, testChunk)
	f := readFrame(t, conn)
	assert.Greater(t, f.Offset, int64(2*testChunk), "skipped chunks leave a gap")
	assert.Zero(t, f.Offset%testChunk)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(s.metrics.frames) == 3
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, float64(3*testChunk), testutil.ToFloat64(s.metrics.requested))
	assert.Greater(t, testutil.ToFloat64(s.metrics.skipped), float64(0))
}

func TestServerResamplesForClient(t *testing.T) {
	s, ts := startTestServer(t, NewTestTone(44100, 2))
	conn, start := dialTestServer(t, ts, "resample", []protocol.AudioFormat{testFormat})
	s.startStreaming()

	assert.Equal(t, testFormat, start.Format)
	sendRequest(t, conn, 10*testChunk)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var next int64
	for i := 0; i < 3; i++ {
		f := readFrame(t, conn)
		assert.Equal(t, next, f.Offset, "resampled frames are contiguous")
		assert.Zero(t, len(f.Data)%4)
		assert.InDelta(t, testChunk, len(f.Data), 8)
		next = f.Offset + int64(len(f.Data))
	}
}

func TestServerNoFramesBeforeRequest(t *testing.T) {
	s, ts := startTestServer(t, NewTestTone(48000, 2))
	dialTestServer(t, ts, "idle", []protocol.AudioFormat{testFormat})
	s.startStreaming()

	time.Sleep(100 * time.Millisecond)

	clients := s.Clients()
	require.Len(t, clients, 1)
	assert.Equal(t, int64(0), clients[0].Offset, "position holds until the first request")
	assert.Equal(t, "pcm 48000Hz/16bit/2ch", clients[0].Format)
	assert.Equal(t, float64(0), testutil.ToFloat64(s.metrics.frames))
}

func TestServerSkip(t *testing.T) {
	s, ts := startTestServer(t, NewTestTone(48000, 2))
	conn, _ := dialTestServer(t, ts, "skip", []protocol.AudioFormat{testFormat})
	s.startStreaming()

	sendRequest(t, conn, 100*testChunk)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	readFrame(t, conn)

	s.Skip(100 * time.Millisecond)

	msg := readControl(t, conn)
	require.Equal(t, protocol.TypeStreamSeek, msg.Type)
	var seek protocol.StreamSeek
	require.NoError(t, msg.Decode(&seek))
	assert.Equal(t, protocol.StreamSeek{Offset: 19200, Mode: "relative", Account: true}, seek)
}

func TestServerFlush(t *testing.T) {
	s, ts := startTestServer(t, NewTestTone(48000, 2))
	conn, _ := dialTestServer(t, ts, "flush", []protocol.AudioFormat{testFormat})
	s.startStreaming()

	s.Flush("seek")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msg := readControl(t, conn)
	require.Equal(t, protocol.TypeStreamFlush, msg.Type)
	var flush protocol.StreamFlush
	require.NoError(t, msg.Decode(&flush))
	assert.Equal(t, "seek", flush.Reason)
}

func TestServerEndOfSource(t *testing.T) {
	source := &finiteSource{
		format:    audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 16},
		remaining: 3 * 1920,
	}
	s, ts := startTestServer(t, source)
	conn, _ := dialTestServer(t, ts, "eof", []protocol.AudioFormat{testFormat})
	s.startStreaming()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msg := readControl(t, conn)
	require.Equal(t, protocol.TypeStreamEnd, msg.Type)
	var end protocol.StreamEnd
	require.NoError(t, msg.Decode(&end))
	assert.Equal(t, "eof", end.Reason)
}

func TestServerRejectsDuplicateClient(t *testing.T) {
	_, ts := startTestServer(t, NewTestTone(48000, 2))
	dialTestServer(t, ts, "twin", []protocol.AudioFormat{testFormat})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + protocol.Path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(protocol.Message{
		Type:    protocol.TypeClientHello,
		Payload: protocol.ClientHello{ClientID: "twin", Name: "second"},
	}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "duplicate client should be disconnected")
}

func TestServerMetricsEndpoint(t *testing.T) {
	_, ts := startTestServer(t, NewTestTone(48000, 2))

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "blockq_server_clients")
}
