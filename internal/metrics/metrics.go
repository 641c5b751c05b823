package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics 业务指标
type AppMetrics struct {
	MIDIBytesIn      prometheus.Counter     // MIDI 入站字节数
	MIDIBytesOut     prometheus.Counter     // MIDI 出站字节数
	SysExDecodeTotal *prometheus.CounterVec // labels: result=ok|partial|error
	SysExEncodeTotal *prometheus.CounterVec // labels: result=ok|error
	SlotReadTotal    *prometheus.CounterVec // labels: result
	SlotWriteTotal   *prometheus.CounterVec // labels: result
	OpenPortsGauge   prometheus.Gauge       // 当前打开的 MIDI 端口数
	DeviceOnline     prometheus.Gauge       // 设备在线状态 0/1
	OutboundQueueLen prometheus.Gauge       // 下行队列长度
	OutboundRetries  prometheus.Counter     // 下行重试次数
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg *prometheus.Registry) *AppMetrics {
	m := &AppMetrics{
		MIDIBytesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "midi_bytes_in_total",
			Help: "Total bytes received from MIDI input ports.",
		}),
		MIDIBytesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "midi_bytes_out_total",
			Help: "Total bytes sent to MIDI output ports.",
		}),
		SysExDecodeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sysex_decode_total",
			Help: "Custom mode decode attempts.",
		}, []string{"result"}),
		SysExEncodeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sysex_encode_total",
			Help: "Custom mode encode attempts.",
		}, []string{"result"}),
		SlotReadTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slot_read_total",
			Help: "Device slot read operations.",
		}, []string{"result"}),
		SlotWriteTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slot_write_total",
			Help: "Device slot write operations.",
		}, []string{"result"}),
		OpenPortsGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "midi_open_ports",
			Help: "Currently open MIDI ports.",
		}),
		DeviceOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "device_online",
			Help: "Whether the controller answered the last handshake.",
		}),
		OutboundQueueLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbound_queue_length",
			Help: "Pending outbound SysEx messages.",
		}),
		OutboundRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "outbound_retries_total",
			Help: "Outbound send retries.",
		}),
	}
	reg.MustRegister(
		m.MIDIBytesIn, m.MIDIBytesOut,
		m.SysExDecodeTotal, m.SysExEncodeTotal,
		m.SlotReadTotal, m.SlotWriteTotal,
		m.OpenPortsGauge, m.DeviceOnline,
		m.OutboundQueueLen, m.OutboundRetries,
	)
	return m
}
