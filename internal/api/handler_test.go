package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/taoyao-code/xl3-server/internal/config"
	"github.com/taoyao-code/xl3-server/internal/gateway"
	"github.com/taoyao-code/xl3-server/internal/outbound"
	"github.com/taoyao-code/xl3-server/internal/protocol/sysex"
)

// fakePorts PortOps 的内存实现
type fakePorts struct {
	openInputs  map[string]string
	openOutputs map[string]string
	inbox       map[string][]gateway.InboundMessage
	failOpen    bool
}

func newFakePorts() *fakePorts {
	return &fakePorts{
		openInputs:  map[string]string{},
		openOutputs: map[string]string{},
		inbox:       map[string][]gateway.InboundMessage{},
	}
}

func (f *fakePorts) ListPorts() ([]string, []string) {
	return []string{"LCXL3 1 MIDI Out"}, []string{"LCXL3 1 MIDI In"}
}

func (f *fakePorts) OpenIDs() (ins, outs []string) {
	for id := range f.openInputs {
		ins = append(ins, id)
	}
	for id := range f.openOutputs {
		outs = append(outs, id)
	}
	return
}

func (f *fakePorts) OpenInput(id, name string) error {
	if f.failOpen {
		return fmt.Errorf("input port not found: %s", name)
	}
	f.openInputs[id] = name
	return nil
}

func (f *fakePorts) OpenOutput(id, name string) error {
	if f.failOpen {
		return fmt.Errorf("output port not found: %s", name)
	}
	f.openOutputs[id] = name
	return nil
}

func (f *fakePorts) ClosePort(id string) bool {
	_, ok1 := f.openInputs[id]
	_, ok2 := f.openOutputs[id]
	delete(f.openInputs, id)
	delete(f.openOutputs, id)
	return ok1 || ok2
}

func (f *fakePorts) Messages(id string) []gateway.InboundMessage {
	msgs := f.inbox[id]
	f.inbox[id] = nil
	return msgs
}

// fakeDevice DeviceOps 的脚本化实现
type fakeDevice struct {
	serial   string
	readRes  *sysex.Result
	readErr  error
	writeErr error
	slot     byte
	selected []byte
}

func (f *fakeDevice) Handshake(ctx context.Context) (string, error) {
	if f.serial == "" {
		return "", fmt.Errorf("no reply")
	}
	return f.serial, nil
}

func (f *fakeDevice) ReadSlot(ctx context.Context, slot byte) (*sysex.Result, error) {
	return f.readRes, f.readErr
}

func (f *fakeDevice) WriteSlot(ctx context.Context, mode *sysex.CustomMode) error {
	return f.writeErr
}

func (f *fakeDevice) SelectSlot(ctx context.Context, slot byte) error {
	f.selected = append(f.selected, slot)
	return nil
}

func (f *fakeDevice) CurrentSlot(ctx context.Context) (byte, error) { return f.slot, nil }
func (f *fakeDevice) Serial() string                                { return f.serial }

type fakeSubmitter struct {
	jobs []*outbound.Job
	err  error
}

func (f *fakeSubmitter) Submit(ctx context.Context, job *outbound.Job) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func newTestRouter(ports *fakePorts, dev *fakeDevice, out *fakeSubmitter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(ports, dev, out, nil, nil, nil)
	RegisterRoutes(r, h, cfgpkg.AuthConfig{}, nil)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestListPorts(t *testing.T) {
	ports := newFakePorts()
	r := newTestRouter(ports, &fakeDevice{}, &fakeSubmitter{})

	rr := doJSON(t, r, http.MethodGet, "/api/ports", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Contains(t, resp["inputs"], "LCXL3 1 MIDI Out")
}

func TestOpenAndClosePort(t *testing.T) {
	ports := newFakePorts()
	r := newTestRouter(ports, &fakeDevice{}, &fakeSubmitter{})

	rr := doJSON(t, r, http.MethodPost, "/api/ports/midi_in",
		map[string]string{"name": "LCXL3 1 MIDI Out", "type": "input"})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "LCXL3 1 MIDI Out", ports.openInputs["midi_in"])

	rr = doJSON(t, r, http.MethodDelete, "/api/ports/midi_in", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, ports.openInputs)
}

func TestOpenPortBadType(t *testing.T) {
	r := newTestRouter(newFakePorts(), &fakeDevice{}, &fakeSubmitter{})
	rr := doJSON(t, r, http.MethodPost, "/api/ports/x",
		map[string]string{"name": "foo", "type": "bidirectional"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSendMessageQueuesJob(t *testing.T) {
	out := &fakeSubmitter{}
	r := newTestRouter(newFakePorts(), &fakeDevice{}, out)

	rr := doJSON(t, r, http.MethodPost, "/api/ports/midi_out/send",
		map[string]interface{}{"message": []int{0xF0, 0x00, 0x20, 0x29, 0xF7}})
	assert.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, out.jobs, 1)
	assert.Equal(t, "midi_out", out.jobs[0].PortID)
	assert.Equal(t, outbound.KindRaw, out.jobs[0].Kind)
	assert.Equal(t, []byte{0xF0, 0x00, 0x20, 0x29, 0xF7}, out.jobs[0].Data)
}

func TestSendMessageRejectsBadBytes(t *testing.T) {
	r := newTestRouter(newFakePorts(), &fakeDevice{}, &fakeSubmitter{})
	rr := doJSON(t, r, http.MethodPost, "/api/ports/midi_out/send",
		map[string]interface{}{"message": []int{0x1F0}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetMessagesDrains(t *testing.T) {
	ports := newFakePorts()
	ports.inbox["midi_in"] = []gateway.InboundMessage{{Data: []byte{0x90, 0x3C, 0x7F}}}
	r := newTestRouter(ports, &fakeDevice{}, &fakeSubmitter{})

	rr := doJSON(t, r, http.MethodGet, "/api/ports/midi_in/messages", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Messages [][]int `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, []int{0x90, 0x3C, 0x7F}, resp.Messages[0])

	rr = doJSON(t, r, http.MethodGet, "/api/ports/midi_in/messages", nil)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Empty(t, resp.Messages)
}

func TestDeviceHandshake(t *testing.T) {
	dev := &fakeDevice{serial: "LX28A0123456"}
	r := newTestRouter(newFakePorts(), dev, &fakeSubmitter{})

	rr := doJSON(t, r, http.MethodPost, "/api/device/handshake", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "LX28A0123456")
}

func TestSelectSlotValidation(t *testing.T) {
	dev := &fakeDevice{serial: "X"}
	r := newTestRouter(newFakePorts(), dev, &fakeSubmitter{})

	rr := doJSON(t, r, http.MethodPut, "/api/device/slot/3", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []byte{3}, dev.selected)

	rr = doJSON(t, r, http.MethodPut, "/api/device/slot/16", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestReadSlotReturnsMode(t *testing.T) {
	mode := sysex.NewCustomMode(3)
	mode.SetName("Live Set")
	mode.Controls[0x10] = sysex.Control{ID: 0x10, RawType: 0x05, CC: 0x0D, Max: 0x7F}
	dev := &fakeDevice{readRes: &sysex.Result{Mode: mode}}
	r := newTestRouter(newFakePorts(), dev, &fakeSubmitter{})

	rr := doJSON(t, r, http.MethodGet, "/api/device/slots/3", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Live Set")
}

func TestAuthRejectsWithoutKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(newFakePorts(), &fakeDevice{}, &fakeSubmitter{}, nil, nil, nil)
	RegisterRoutes(r, h, cfgpkg.AuthConfig{Enable: true, APIKeys: []string{"sk_test_abcd1234"}}, nil)

	rr := doJSON(t, r, http.MethodGet, "/api/ports", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/ports", nil)
	req.Header.Set("X-API-Key", "sk_test_abcd1234")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
