// ABOUTME: blockq wire protocol package
// ABOUTME: Defines control messages, the chunk frame codec and the WebSocket client
// Package protocol implements the blockq stream protocol.
//
// Control messages are JSON objects of the form {"type": ..., "payload": ...}.
// Audio travels in binary frames that name the absolute stream byte offset
// their payload belongs at, so a receiver can place late or repeated frames
// directly into a position-indexed queue. Flow control is credit based: the
// client sends stream/request with the bytes its queue is missing and the
// server never sends more than was requested.
//
// Example:
//
//	c := protocol.NewClient(protocol.Config{ServerAddr: "localhost:8927", Name: "kitchen"})
//	if err := c.Connect(); err != nil {
//		return err
//	}
//	start := <-c.StreamStart
//	c.SendRequest(48000 * 4)
//	for f := range c.Frames {
//		// place f.Data at f.Offset
//	}
package protocol
