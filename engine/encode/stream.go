// Package encode implements the per-pass command stream: an append-only,
// self-describing sequence of commands recorded by user execute-callbacks
// (Encoder) and walked in order at submission time by the backend (Reader).
//
// Each entry carries a CommandHeader {Type, Size} followed by its payload,
// mirroring the wire format described for the engine's command stream: Size
// covers both the fixed payload and any trailing variable-length bytes
// (vertex/index data, push constants), so a reader can always skip an entry
// it does not understand. Viewport and scissor rects are carried as fixed
// payload structs, one rect per command, and are not appended as trailing
// bytes.
package encode

import "reflect"

// CommandType identifies the payload layout that follows a CommandHeader.
type CommandType uint32

const (
	CmdBindGraphicsPipeline CommandType = iota
	CmdBindComputePipeline
	CmdBindRtxPipeline
	CmdBindIndexBuffer
	CmdBindVertexBuffers
	CmdSetIndexData
	CmdSetVertexData
	CmdWriteToBuffer
	CmdWriteToImage
	CmdSetArgumentData
	CmdSetArgumentTexture
	CmdSetArgumentImage
	CmdSetArgumentTlas
	CmdBindArgumentBuffer
	CmdSetPushConstantData
	CmdSetViewport
	CmdSetScissor
	CmdSetLineWidth
	CmdDraw
	CmdDrawIndexed
	CmdDrawMeshTasks
	CmdDispatch
	CmdTraceRays
	CmdBuildRtxBlas
	CmdBuildRtxTlas
)

// CommandHeader precedes every record in the stream.
type CommandHeader struct {
	Type CommandType
	Size uint32
}

// Command is one self-describing stream entry: a header, a typed fixed
// payload, and any trailing variable-length bytes the payload references.
type Command struct {
	Header   CommandHeader
	Payload  interface{}
	Trailing []byte
}

// Stream is the append-only sequence of commands a single pass's Encoder
// writes into.
type Stream struct {
	commands []Command
}

// NewStream returns an empty stream with capacity pre-reserved.
func NewStream(capacityHint int) *Stream {
	return &Stream{commands: make([]Command, 0, capacityHint)}
}

// Commands returns the recorded stream contents in emission order.
func (s *Stream) Commands() []Command { return s.commands }

// Len reports the number of recorded commands.
func (s *Stream) Len() int { return len(s.commands) }

// Reset truncates the stream for reuse across frames without reallocating
// its backing array.
func (s *Stream) Reset() { s.commands = s.commands[:0] }

func (s *Stream) append(t CommandType, payload interface{}, trailing []byte) {
	s.commands = append(s.commands, Command{
		Header:   CommandHeader{Type: t, Size: uint32(reflect.TypeOf(payload).Size()) + uint32(len(trailing))},
		Payload:  payload,
		Trailing: trailing,
	})
}

// Reader walks a recorded Stream in order, matching the decoder's "advance
// by header" contract.
type Reader struct {
	commands []Command
	index    int
}

// NewReader wraps a recorded stream for sequential decode.
func NewReader(s *Stream) *Reader {
	return &Reader{commands: s.commands}
}

// Next returns the next command, or ok=false at end of stream.
func (r *Reader) Next() (Command, bool) {
	if r.index >= len(r.commands) {
		return Command{}, false
	}
	c := r.commands[r.index]
	r.index++
	return c, true
}
