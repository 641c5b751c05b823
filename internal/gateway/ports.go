package gateway

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // 注册 rtmidi 驱动
	"go.uber.org/zap"

	appmetrics "github.com/taoyao-code/xl3-server/internal/metrics"
)

// InboundMessage 输入端口收到的一条原始 MIDI 消息
type InboundMessage struct {
	Data []byte    `json:"data"`
	At   time.Time `json:"at"`
}

// 每个输入端口保留的消息队列上限，超出丢弃最旧的
const inboundQueueCap = 256

type inPort struct {
	name  string
	in    drivers.In
	stop  func()
	mu    sync.Mutex
	queue []InboundMessage
}

func (p *inPort) push(m InboundMessage) {
	p.mu.Lock()
	if len(p.queue) >= inboundQueueCap {
		p.queue = p.queue[1:]
	}
	p.queue = append(p.queue, m)
	p.mu.Unlock()
}

func (p *inPort) drain() []InboundMessage {
	p.mu.Lock()
	out := p.queue
	p.queue = nil
	p.mu.Unlock()
	return out
}

// Tap 入站消息旁路回调：portID + 原始字节
type Tap func(portID string, data []byte)

// PortManager 管理命名 MIDI 端口：按 ID 打开/关闭、发送、取回入站消息。
// ID 由调用方指定（如 midi_in / daw_out），同一 ID 重复打开会先关闭旧的。
type PortManager struct {
	log  *zap.Logger
	appm *appmetrics.AppMetrics

	mu   sync.RWMutex
	ins  map[string]*inPort
	outs map[string]drivers.Out
	taps []Tap
}

func NewPortManager(log *zap.Logger, appm *appmetrics.AppMetrics) *PortManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &PortManager{
		log:  log,
		appm: appm,
		ins:  make(map[string]*inPort),
		outs: make(map[string]drivers.Out),
	}
}

// ListPorts 枚举系统当前可见的 MIDI 输入/输出端口名
func (pm *PortManager) ListPorts() (inputs, outputs []string) {
	for _, in := range midi.GetInPorts() {
		inputs = append(inputs, in.String())
	}
	for _, out := range midi.GetOutPorts() {
		outputs = append(outputs, out.String())
	}
	return inputs, outputs
}

// findIn 按名称查输入端口：先精确匹配，再子串匹配（rtmidi 端口名带系统后缀）
func findIn(name string) drivers.In {
	ins := midi.GetInPorts()
	for _, in := range ins {
		if in.String() == name {
			return in
		}
	}
	for _, in := range ins {
		if strings.Contains(in.String(), name) {
			return in
		}
	}
	return nil
}

func findOut(name string) drivers.Out {
	outs := midi.GetOutPorts()
	for _, out := range outs {
		if out.String() == name {
			return out
		}
	}
	for _, out := range outs {
		if strings.Contains(out.String(), name) {
			return out
		}
	}
	return nil
}

// Subscribe 注册入站旁路回调，需在 OpenInput 之前调用
func (pm *PortManager) Subscribe(t Tap) {
	pm.mu.Lock()
	pm.taps = append(pm.taps, t)
	pm.mu.Unlock()
}

// OpenInput 按 ID 打开输入端口并开始监听（含 SysEx）
func (pm *PortManager) OpenInput(id, name string) error {
	in := findIn(name)
	if in == nil {
		return fmt.Errorf("input port not found: %s", name)
	}

	p := &inPort{name: in.String(), in: in}
	stop, err := midi.ListenTo(in, func(msg midi.Message, timestampms int32) {
		data := append([]byte(nil), msg.Bytes()...)
		p.push(InboundMessage{Data: data, At: time.Now()})
		if pm.appm != nil {
			pm.appm.MIDIBytesIn.Add(float64(len(data)))
		}
		pm.mu.RLock()
		taps := pm.taps
		pm.mu.RUnlock()
		for _, t := range taps {
			t(id, data)
		}
	}, midi.UseSysEx(), midi.SysExBufferSize(4096))
	if err != nil {
		return fmt.Errorf("listen %s: %w", in.String(), err)
	}
	p.stop = stop

	pm.mu.Lock()
	if old, ok := pm.ins[id]; ok {
		old.stop()
	}
	pm.ins[id] = p
	pm.mu.Unlock()

	pm.log.Info("midi input opened", zap.String("id", id), zap.String("port", in.String()))
	pm.updatePortGauge()
	return nil
}

// OpenOutput 按 ID 打开输出端口
func (pm *PortManager) OpenOutput(id, name string) error {
	out := findOut(name)
	if out == nil {
		return fmt.Errorf("output port not found: %s", name)
	}
	if err := out.Open(); err != nil {
		return fmt.Errorf("open %s: %w", out.String(), err)
	}

	pm.mu.Lock()
	if old, ok := pm.outs[id]; ok {
		_ = old.Close()
	}
	pm.outs[id] = out
	pm.mu.Unlock()

	pm.log.Info("midi output opened", zap.String("id", id), zap.String("port", out.String()))
	pm.updatePortGauge()
	return nil
}

// ClosePort 关闭指定 ID 的端口（输入或输出）
func (pm *PortManager) ClosePort(id string) bool {
	pm.mu.Lock()
	closed := false
	if p, ok := pm.ins[id]; ok {
		p.stop()
		delete(pm.ins, id)
		closed = true
	}
	if out, ok := pm.outs[id]; ok {
		_ = out.Close()
		delete(pm.outs, id)
		closed = true
	}
	pm.mu.Unlock()
	if closed {
		pm.log.Info("midi port closed", zap.String("id", id))
		pm.updatePortGauge()
	}
	return closed
}

// Send 向指定输出端口发送原始 MIDI 字节
func (pm *PortManager) Send(id string, data []byte) error {
	pm.mu.RLock()
	out, ok := pm.outs[id]
	pm.mu.RUnlock()
	if !ok {
		return fmt.Errorf("output port not open: %s", id)
	}
	if err := out.Send(data); err != nil {
		return fmt.Errorf("send on %s: %w", id, err)
	}
	if pm.appm != nil {
		pm.appm.MIDIBytesOut.Add(float64(len(data)))
	}
	return nil
}

// Sender 返回绑定到某个输出端口 ID 的发送函数
func (pm *PortManager) Sender(id string) func([]byte) error {
	return func(data []byte) error { return pm.Send(id, data) }
}

// Messages 取走指定输入端口已接收的消息（取走即清空）
func (pm *PortManager) Messages(id string) []InboundMessage {
	pm.mu.RLock()
	p, ok := pm.ins[id]
	pm.mu.RUnlock()
	if !ok {
		return nil
	}
	return p.drain()
}

// OpenIDs 返回当前打开的端口 ID
func (pm *PortManager) OpenIDs() (inputs, outputs []string) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	for id := range pm.ins {
		inputs = append(inputs, id)
	}
	for id := range pm.outs {
		outputs = append(outputs, id)
	}
	return inputs, outputs
}

// Close 关闭全部端口并释放驱动
func (pm *PortManager) Close() {
	pm.mu.Lock()
	for id, p := range pm.ins {
		p.stop()
		delete(pm.ins, id)
	}
	for id, out := range pm.outs {
		_ = out.Close()
		delete(pm.outs, id)
	}
	pm.mu.Unlock()
	pm.updatePortGauge()
	midi.CloseDriver()
}

func (pm *PortManager) updatePortGauge() {
	if pm.appm == nil {
		return
	}
	pm.mu.RLock()
	n := len(pm.ins) + len(pm.outs)
	pm.mu.RUnlock()
	pm.appm.OpenPortsGauge.Set(float64(n))
}
