package session

import (
	"sync"
	"time"
)

// Device 一次握手建立的设备会话信息
type Device struct {
	Serial      string    // 设备序列号（握手应答解析）
	InPort      string    // 绑定的 MIDI 输入端口名
	OutPort     string    // 绑定的 MIDI 输出端口名
	ActiveSlot  uint8     // 最近一次选中的槽位
	ConnectedAt time.Time // 握手完成时间
}

// Manager 会话管理最小实现：按序列号记录设备最近活动时间，判断是否在线
type Manager struct {
	mu       sync.RWMutex
	lastSeen map[string]time.Time // serial -> last seen
	devices  map[string]Device
	timeout  time.Duration
}

func New(timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Manager{
		lastSeen: make(map[string]time.Time),
		devices:  make(map[string]Device),
		timeout:  timeout,
	}
}

// OnActivity 更新设备最近活动时间（任意入站 MIDI 消息）
func (m *Manager) OnActivity(serial string, t time.Time) {
	m.mu.Lock()
	m.lastSeen[serial] = t
	m.mu.Unlock()
}

// Bind 登记握手成功的设备会话，重复绑定将覆盖
func (m *Manager) Bind(d Device) {
	m.mu.Lock()
	m.devices[d.Serial] = d
	m.lastSeen[d.Serial] = d.ConnectedAt
	m.mu.Unlock()
}

// Unbind 解除设备会话（端口关闭或设备拔出）
func (m *Manager) Unbind(serial string) {
	m.mu.Lock()
	delete(m.devices, serial)
	m.mu.Unlock()
}

// Get 返回设备会话
func (m *Manager) Get(serial string) (Device, bool) {
	m.mu.RLock()
	d, ok := m.devices[serial]
	m.mu.RUnlock()
	return d, ok
}

// SetActiveSlot 记录设备当前选中的槽位
func (m *Manager) SetActiveSlot(serial string, slot uint8) {
	m.mu.Lock()
	if d, ok := m.devices[serial]; ok {
		d.ActiveSlot = slot
		m.devices[serial] = d
	}
	m.mu.Unlock()
}

// IsOnline 判断设备是否在线
func (m *Manager) IsOnline(serial string, now time.Time) bool {
	m.mu.RLock()
	ts, ok := m.lastSeen[serial]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	return now.Sub(ts) <= m.timeout
}

// OnlineCount 返回当前在线设备数量
func (m *Manager) OnlineCount(now time.Time) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, ts := range m.lastSeen {
		if now.Sub(ts) <= m.timeout {
			count++
		}
	}
	return count
}

// List 返回所有已绑定的设备会话
func (m *Manager) List() []Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Device, 0, len(m.devices))
	for _, d := range m.devices {
		out = append(out, d)
	}
	return out
}
