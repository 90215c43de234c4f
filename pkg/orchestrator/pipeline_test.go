package orchestrator

import (
	"bytes"
	"context"
	"testing"

	"github.com/user/framedecode/pkg/adapters/filesink"
	"github.com/user/framedecode/pkg/adapters/framesource"
	"github.com/user/framedecode/pkg/mocks"
	"github.com/user/framedecode/pkg/wireframe"
)

func annexB(nalus ...[]byte) []byte {
	var out []byte
	for _, n := range nalus {
		out = append(out, 0, 0, 0, 1)
		out = append(out, n...)
	}
	return out
}

// TestPipeline_AnnexBToRecording runs an elementary stream with a
// resolution change through a job and replays the recording.
func TestPipeline_AnnexBToRecording(t *testing.T) {
	var (
		sps64 = []byte{0x67, 0x42, 0x00, 0x1e, 0xda, 0x10, 0x99}
		sps32 = []byte{0x67, 0x42, 0x00, 0x1e, 0xda, 0x25, 0x90}
		pps   = []byte{0x68, 0xce, 0x38, 0x80}
		idr   = []byte{0x65, 0x88, 0x84, 0x21, 0xff}
		pic   = []byte{0x41, 0x9a, 0x11, 0x22}
	)
	src, err := framesource.NewAnnexB(bytes.NewReader(annexB(sps64, pps, idr, pic, sps32, pps, idr)))
	if err != nil {
		t.Fatalf("NewAnnexB: %v", err)
	}

	var rec bytes.Buffer
	sink := filesink.New(&rec)
	b := mocks.NewBackend()

	results, err := newOrchestrator(b).Run(context.Background(), []Job{
		{Name: "camera.h264", Destination: 7, Source: src, Sink: sink},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}

	r := results[0]
	if r.Err != nil {
		t.Fatalf("job: %v", r.Err)
	}
	if r.Stats.Frames != 3 || r.Stats.Rebuilds != 2 {
		t.Errorf("stats = %+v", r.Stats)
	}

	msgs, err := filesink.ReadAll(&rec)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	want := [][2]int32{{64, 64}, {64, 64}, {32, 32}}
	if len(msgs) != len(want) {
		t.Fatalf("messages = %d, want %d", len(msgs), len(want))
	}
	for i, raw := range msgs {
		m, err := wireframe.Unpack(raw)
		if err != nil {
			t.Fatalf("message %d: %v", i, err)
		}
		if m.Destination != 7 || m.Width != want[i][0] || m.Height != want[i][1] {
			t.Errorf("message %d = dest %d %dx%d", i, m.Destination, m.Width, m.Height)
		}
	}
	if n := b.LiveHandles(); n != 0 {
		t.Errorf("%d handles leaked", n)
	}
}
