package encode

import (
	"bytes"
	"testing"

	"github.com/nullrend/vkfg/engine/alloc"
	"github.com/nullrend/vkfg/engine/handle"
	"github.com/nullrend/vkfg/engine/math"
)

// TestCommandStreamRoundTrip covers the command-stream round-trip property:
// everything an Encoder records is read back, in order, by a Reader over the
// same Stream, with trailing bytes preserved verbatim.
func TestCommandStreamRoundTrip(t *testing.T) {
	mem := make([]byte, 4096)
	scratch := alloc.NewLinearAllocator(mem, 0, 4096)
	stream := NewStream(8)
	enc := New(stream, scratch, nil, nil, math.Extent2D{Width: 1280, Height: 720}, "test-pass")

	enc.BindGraphicsPipeline(0xABCD)
	vertexData := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	enc.SetVertexData(vertexData, 0)
	enc.Draw(3, 1, 0, 0)

	reader := NewReader(stream)

	cmd, ok := reader.Next()
	if !ok || cmd.Header.Type != CmdBindGraphicsPipeline {
		t.Fatalf("first command = %+v, ok=%v, want CmdBindGraphicsPipeline", cmd, ok)
	}
	if p, ok := cmd.Payload.(BindPipelinePayload); !ok || p.PSOHash != 0xABCD {
		t.Errorf("BindGraphicsPipeline payload = %+v, want PSOHash 0xABCD", cmd.Payload)
	}

	cmd, ok = reader.Next()
	if !ok || cmd.Header.Type != CmdSetVertexData {
		t.Fatalf("second command = %+v, ok=%v, want CmdSetVertexData", cmd, ok)
	}
	if !bytes.Equal(cmd.Trailing, vertexData) {
		t.Errorf("trailing bytes = %v, want %v", cmd.Trailing, vertexData)
	}
	// Size covers the 4-byte SetVertexDataPayload plus the trailing bytes.
	if cmd.Header.Size != uint32(4+len(vertexData)) {
		t.Errorf("Header.Size = %d, want %d", cmd.Header.Size, 4+len(vertexData))
	}

	cmd, ok = reader.Next()
	if !ok || cmd.Header.Type != CmdDraw {
		t.Fatalf("third command = %+v, ok=%v, want CmdDraw", cmd, ok)
	}
	want := DrawPayload{VertexCount: 3, InstanceCount: 1}
	if cmd.Payload != want {
		t.Errorf("Draw payload = %+v, want %+v", cmd.Payload, want)
	}

	if _, ok := reader.Next(); ok {
		t.Error("reader should be exhausted after the recorded commands")
	}
}

func TestStreamResetTruncatesWithoutReallocating(t *testing.T) {
	s := NewStream(4)
	s.append(CmdDraw, DrawPayload{VertexCount: 3}, nil)
	s.append(CmdDraw, DrawPayload{VertexCount: 6}, nil)
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}

	s.Reset()
	if s.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", s.Len())
	}

	s.append(CmdDraw, DrawPayload{VertexCount: 9}, nil)
	if s.Len() != 1 {
		t.Fatalf("Len() after re-append = %d, want 1", s.Len())
	}
	if s.Commands()[0].Payload.(DrawPayload).VertexCount != 9 {
		t.Errorf("command after reset = %+v, want VertexCount 9", s.Commands()[0].Payload)
	}
}

func TestSetVertexDataReturnsVirtualBufferHandle(t *testing.T) {
	mem := make([]byte, 4096)
	scratch := alloc.NewLinearAllocator(mem, 0, 4096)
	stream := NewStream(4)
	enc := New(stream, scratch, nil, nil, math.Extent2D{}, "vb-pass")

	h, ok := enc.SetVertexData([]byte{1, 2, 3, 4}, 2)
	if !ok {
		t.Fatal("SetVertexData reported failure within capacity")
	}
	if !h.IsVirtual() {
		t.Error("SetVertexData should return a virtual buffer handle")
	}
	if h.Kind() != handle.KindBuffer {
		t.Errorf("handle Kind() = %v, want KindBuffer", h.Kind())
	}
}

func TestAllocScratchOverflowDropsCommandAndReturnsFalse(t *testing.T) {
	mem := make([]byte, 64)
	scratch := alloc.NewLinearAllocator(mem, 0, 64)
	stream := NewStream(4)
	enc := New(stream, scratch, nil, nil, math.Extent2D{}, "overflow-pass")

	_, ok := enc.SetVertexData(make([]byte, 256), 0)
	if ok {
		t.Fatal("SetVertexData should fail when the scratch region overflows")
	}
	if stream.Len() != 0 {
		t.Errorf("a dropped upload should not append any command, got Len()=%d", stream.Len())
	}
}
