// ABOUTME: High-level blockq streaming API
// ABOUTME: Provides Player and Server types built on the block queue and wire protocol
// Package stream provides high-level APIs for blockq audio streaming.
//
// This is the main entry point for most library users, providing:
//   - Player: connect to a server, buffer the stream in a block queue and play it
//   - Server: send one audio source to any number of players under credit flow control
//   - AudioSource: interface for custom audio sources
//
// Players ask for exactly what their queue is missing. Servers only send
// what was asked for; audio a player had no room for is skipped and the
// gap is played as silence.
//
// Example Player:
//
//	player, err := stream.NewPlayer(stream.PlayerConfig{
//	    ServerAddr: "localhost:8927",
//	    Name:       "Living Room",
//	    Buffer:     protocol.BufferAttr{TargetMs: 500, PrebufMs: -1, MinReqMs: 20},
//	})
//	err = player.Connect()
//	<-player.Done()
//
// Example Server:
//
//	source, err := stream.NewFileSource("/path/to/audio.flac", true)
//	server, err := stream.NewServer(stream.ServerConfig{
//	    Port:   8927,
//	    Source: source,
//	})
//	err = server.Start()
package stream
