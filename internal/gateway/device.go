package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	appmetrics "github.com/taoyao-code/xl3-server/internal/metrics"
	"github.com/taoyao-code/xl3-server/internal/protocol/sysex"
	"github.com/taoyao-code/xl3-server/internal/session"
)

// DAW 口槽位切换序列中的固定字节
const (
	dawSelectPrefix  = 0x9F // Note On ch16：进入/退出模板选择
	dawSelectNote    = 0x0B
	dawSlotCC        = 0x1E // CC 30 携带槽位值
	dawSlotSetStatus = 0xB6 // CC ch7：写当前槽位
	dawSlotQryStatus = 0xB7 // CC ch8：查当前槽位
	dawSlotBase      = 6    // CC 值 = 槽位 + 6
)

// SendFunc 向某个输出端口发送原始 MIDI 字节
type SendFunc func(data []byte) error

type pendingKey struct {
	verb byte
	slot byte
}

// Device 设备级协议处理：握手、槽位读写、槽位切换。
// 入站消息经 OnMIDI/OnDAW 喂入，请求与应答按 (verb, slot) 配对。
type Device struct {
	log     *zap.Logger
	appm    *appmetrics.AppMetrics
	sess    *session.Manager
	dec     *sysex.Decoder
	send    SendFunc
	sendDAW SendFunc
	timeout time.Duration

	mu      sync.Mutex
	pending map[pendingKey]chan *sysex.Message
	hsCh    chan string
	slotCh  chan byte
	serial  string
}

func NewDevice(log *zap.Logger, appm *appmetrics.AppMetrics, sess *session.Manager, send, sendDAW SendFunc, timeout time.Duration, decMode sysex.DecodeMode) *Device {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Device{
		log:     log,
		appm:    appm,
		sess:    sess,
		dec:     sysex.NewDecoder(decMode),
		send:    send,
		sendDAW: sendDAW,
		timeout: timeout,
		pending: make(map[pendingKey]chan *sysex.Message),
	}
}

// Serial 返回握手获得的设备序列号，未握手为空串
func (d *Device) Serial() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.serial
}

// OnMIDI 设备口入站消息入口（PortManager 旁路回调）
func (d *Device) OnMIDI(portID string, data []byte) {
	if len(data) == 0 || data[0] != sysex.SysExStart {
		return
	}

	msg, err := sysex.Unwrap(data)
	if err != nil {
		// 非命令应答：可能是握手应答
		if serial := sysex.ParseHandshakeReply(data); serial != "" {
			d.onHandshakeReply(serial)
			return
		}
		d.log.Debug("unrecognized sysex", zap.Int("len", len(data)), zap.Error(err))
		return
	}
	if !msg.IsResponse() {
		return
	}

	d.mu.Lock()
	serial := d.serial
	ch, ok := d.pending[pendingKey{verb: msg.Verb, slot: msg.Slot}]
	d.mu.Unlock()

	if serial != "" && d.sess != nil {
		d.sess.OnActivity(serial, time.Now())
	}
	if !ok {
		d.log.Debug("unsolicited response", zap.Uint8("verb", msg.Verb), zap.Uint8("slot", msg.Slot))
		return
	}
	select {
	case ch <- msg:
	default:
	}
}

// OnDAW DAW 口入站消息入口，处理槽位查询应答
func (d *Device) OnDAW(portID string, data []byte) {
	if len(data) != 3 || data[0] != dawSlotSetStatus || data[1] != dawSlotCC {
		return
	}
	d.mu.Lock()
	ch := d.slotCh
	d.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- data[2]:
	default:
	}
}

func (d *Device) onHandshakeReply(serial string) {
	d.mu.Lock()
	d.serial = serial
	ch := d.hsCh
	d.mu.Unlock()

	if d.appm != nil {
		d.appm.DeviceOnline.Set(1)
	}
	if ch != nil {
		select {
		case ch <- serial:
		default:
		}
	}
}

// Handshake 发送设备询问并等待序列号应答
func (d *Device) Handshake(ctx context.Context) (string, error) {
	ch := make(chan string, 1)
	d.mu.Lock()
	d.hsCh = ch
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.hsCh = nil
		d.mu.Unlock()
	}()

	if err := d.send(sysex.BuildHandshake()); err != nil {
		return "", fmt.Errorf("handshake send: %w", err)
	}

	select {
	case serial := <-ch:
		if d.sess != nil {
			d.sess.Bind(session.Device{Serial: serial, ConnectedAt: time.Now()})
		}
		d.log.Info("device handshake ok", zap.String("serial", serial))
		return serial, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(d.timeout):
		return "", fmt.Errorf("handshake: no reply within %s", d.timeout)
	}
}

func (d *Device) register(key pendingKey) chan *sysex.Message {
	ch := make(chan *sysex.Message, 1)
	d.mu.Lock()
	d.pending[key] = ch
	d.mu.Unlock()
	return ch
}

func (d *Device) unregister(key pendingKey) {
	d.mu.Lock()
	delete(d.pending, key)
	d.mu.Unlock()
}

func (d *Device) await(ctx context.Context, ch chan *sysex.Message) (*sysex.Message, error) {
	select {
	case msg := <-ch:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(d.timeout):
		return nil, fmt.Errorf("no device reply within %s", d.timeout)
	}
}

// ReadSlot 读取指定槽位的自定义模式并解码
func (d *Device) ReadSlot(ctx context.Context, slot byte) (*sysex.Result, error) {
	if slot > sysex.SlotMax {
		return nil, fmt.Errorf("slot %d out of range", slot)
	}

	key := pendingKey{verb: sysex.VerbReadResponse, slot: slot}
	ch := d.register(key)
	defer d.unregister(key)

	if err := d.send(sysex.BuildReadRequest(slot)); err != nil {
		d.countSlotRead("send_error")
		return nil, fmt.Errorf("read slot %d: %w", slot, err)
	}

	msg, err := d.await(ctx, ch)
	if err != nil {
		d.countSlotRead("timeout")
		return nil, fmt.Errorf("read slot %d: %w", slot, err)
	}

	res, err := d.dec.DecodeBody(msg.Body, msg.Slot)
	switch {
	case err != nil:
		d.countSlotRead("decode_error")
		d.countDecode("error")
		return nil, fmt.Errorf("read slot %d: %w", slot, err)
	case res.Partial:
		d.countSlotRead("partial")
		d.countDecode("partial")
	default:
		d.countSlotRead("ok")
		d.countDecode("ok")
	}
	return res, nil
}

// WriteSlot 编码模式并写入其 Slot 字段指定的槽位，等待设备确认
func (d *Device) WriteSlot(ctx context.Context, mode *sysex.CustomMode) error {
	raw, err := sysex.EncodeMessage(mode)
	if err != nil {
		d.countEncode("error")
		return fmt.Errorf("write slot %d: %w", mode.Slot, err)
	}
	d.countEncode("ok")

	key := pendingKey{verb: sysex.VerbWriteAck, slot: mode.Slot}
	ch := d.register(key)
	defer d.unregister(key)

	if err := d.send(raw); err != nil {
		d.countSlotWrite("send_error")
		return fmt.Errorf("write slot %d: %w", mode.Slot, err)
	}
	if _, err := d.await(ctx, ch); err != nil {
		d.countSlotWrite("timeout")
		return fmt.Errorf("write slot %d: %w", mode.Slot, err)
	}
	d.countSlotWrite("ok")
	return nil
}

// SelectSlot 通过 DAW 口切换设备当前模板槽位
func (d *Device) SelectSlot(ctx context.Context, slot byte) error {
	if slot > sysex.SlotMax {
		return fmt.Errorf("slot %d out of range", slot)
	}
	if d.sendDAW == nil {
		return fmt.Errorf("daw port not bound")
	}

	// 进入选择态，写 CC 值，再退出。硬件要求消息间留间隔。
	if err := d.sendDAW([]byte{dawSelectPrefix, dawSelectNote, 0x7F}); err != nil {
		return fmt.Errorf("select slot %d: %w", slot, err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := d.sendDAW([]byte{dawSlotSetStatus, dawSlotCC, dawSlotBase + slot}); err != nil {
		return fmt.Errorf("select slot %d: %w", slot, err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := d.sendDAW([]byte{dawSelectPrefix, dawSelectNote, 0x00}); err != nil {
		return fmt.Errorf("select slot %d: %w", slot, err)
	}

	d.mu.Lock()
	serial := d.serial
	d.mu.Unlock()
	if serial != "" && d.sess != nil {
		d.sess.SetActiveSlot(serial, slot)
	}
	return nil
}

// CurrentSlot 通过 DAW 口查询设备当前模板槽位
func (d *Device) CurrentSlot(ctx context.Context) (byte, error) {
	if d.sendDAW == nil {
		return 0, fmt.Errorf("daw port not bound")
	}

	ch := make(chan byte, 1)
	d.mu.Lock()
	d.slotCh = ch
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.slotCh = nil
		d.mu.Unlock()
	}()

	if err := d.sendDAW([]byte{dawSelectPrefix, dawSelectNote, 0x7F}); err != nil {
		return 0, fmt.Errorf("query slot: %w", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := d.sendDAW([]byte{dawSlotQryStatus, dawSlotCC, 0x00}); err != nil {
		return 0, fmt.Errorf("query slot: %w", err)
	}

	var cc byte
	select {
	case cc = <-ch:
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-time.After(d.timeout):
		return 0, fmt.Errorf("query slot: no reply within %s", d.timeout)
	}

	if err := d.sendDAW([]byte{dawSelectPrefix, dawSelectNote, 0x00}); err != nil {
		return 0, fmt.Errorf("query slot: %w", err)
	}
	if cc < dawSlotBase {
		return 0, fmt.Errorf("query slot: unexpected cc value %d", cc)
	}
	return cc - dawSlotBase, nil
}

func (d *Device) countSlotRead(result string) {
	if d.appm != nil {
		d.appm.SlotReadTotal.WithLabelValues(result).Inc()
	}
}

func (d *Device) countSlotWrite(result string) {
	if d.appm != nil {
		d.appm.SlotWriteTotal.WithLabelValues(result).Inc()
	}
}

func (d *Device) countDecode(result string) {
	if d.appm != nil {
		d.appm.SysExDecodeTotal.WithLabelValues(result).Inc()
	}
}

func (d *Device) countEncode(result string) {
	if d.appm != nil {
		d.appm.SysExEncodeTotal.WithLabelValues(result).Inc()
	}
}
