package redis

import (
	"encoding/json"
	"testing"

	"github.com/taoyao-code/xl3-server/internal/outbound"
)

// 注意: 队列的读写路径需要 Redis 服务器，集成环境下另行验证

func TestParseJob(t *testing.T) {
	job := outbound.NewJob("midi_out", outbound.KindModeWrite, []byte{0xF0, 0xF7})
	data, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got, err := parseJob(job.ID + ":" + string(data))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.ID != job.ID || got.PortID != "midi_out" || got.Kind != outbound.KindModeWrite {
		t.Fatalf("parsed job = %+v", got)
	}
	if len(got.Data) != 2 || got.Data[0] != 0xF0 {
		t.Fatalf("payload = % X", got.Data)
	}
}

func TestParseJob_BadFormat(t *testing.T) {
	if _, err := parseJob("no-colon-here"); err == nil {
		t.Fatalf("expected format error")
	}
	if _, err := parseJob("id:{broken json"); err == nil {
		t.Fatalf("expected unmarshal error")
	}
}
