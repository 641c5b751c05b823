package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/xl3-server/internal/api"
	cfgpkg "github.com/taoyao-code/xl3-server/internal/config"
	"github.com/taoyao-code/xl3-server/internal/gateway"
	"github.com/taoyao-code/xl3-server/internal/health"
	"github.com/taoyao-code/xl3-server/internal/httpserver"
	"github.com/taoyao-code/xl3-server/internal/logging"
	"github.com/taoyao-code/xl3-server/internal/metrics"
	"github.com/taoyao-code/xl3-server/internal/outbound"
	"github.com/taoyao-code/xl3-server/internal/protocol/sysex"
	"github.com/taoyao-code/xl3-server/internal/session"
	"github.com/taoyao-code/xl3-server/internal/storage"
	"github.com/taoyao-code/xl3-server/internal/storage/gormrepo"
	redisstorage "github.com/taoyao-code/xl3-server/internal/storage/redis"
)

// 缺省端口 ID，与 API 的 /ports/:id 一致
const (
	portMIDIIn  = "midi_in"
	portMIDIOut = "midi_out"
	portDAWIn   = "daw_in"
	portDAWOut  = "daw_out"
)

func main() {
	// 1) 加载配置
	cfg, err := cfgpkg.Load("")
	if err != nil {
		panic(err)
	}

	// 2) 初始化日志
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	log := zap.L()

	// 3) 指标注册与处理器
	reg := metrics.NewRegistry()
	appm := metrics.NewAppMetrics(reg)
	var metricsHandler http.Handler
	if cfg.Metrics.Enable {
		metricsHandler = metrics.Handler(reg)
	}

	// 4) 模式库（可选）
	aggregator := health.NewAggregator()
	var repo storage.ModeRepo
	if cfg.Database.Enable {
		db, err := gormrepo.Open(cfg.Database)
		if err != nil {
			log.Fatal("open database", zap.Error(err))
		}
		if err := gormrepo.Migrate(db); err != nil {
			log.Fatal("migrate database", zap.Error(err))
		}
		repo = gormrepo.New(db)
		aggregator.AddChecker(health.NewDatabaseChecker(db))
		log.Info("mode library enabled")
	}

	// 5) 下行队列：Redis 可选，缺省内存队列
	var queue outbound.Queue = outbound.NewMemQueue()
	var redisClient *redisstorage.Client
	if cfg.Redis.Enable {
		redisClient, err = redisstorage.NewClient(cfg.Redis)
		if err != nil {
			log.Fatal("connect redis", zap.Error(err))
		}
		defer func() { _ = redisClient.Close() }()
		queue = redisstorage.NewSendQueue(redisClient)
		aggregator.AddChecker(health.NewRedisChecker(redisClient))
		log.Info("redis send queue enabled", zap.String("addr", cfg.Redis.Addr))
	}

	// 6) MIDI 网关
	sess := session.New(5 * time.Minute)
	aggregator.AddChecker(health.NewDeviceChecker(sess))
	ports := gateway.NewPortManager(log, appm)
	defer ports.Close()

	decMode := sysex.Strict
	if cfg.MIDI.DecodeLenient {
		decMode = sysex.Lenient
	}
	dev := gateway.NewDevice(log, appm, sess,
		ports.Sender(portMIDIOut), ports.Sender(portDAWOut),
		cfg.MIDI.ResponseTimeout, decMode)

	ports.Subscribe(func(portID string, data []byte) {
		switch portID {
		case portMIDIIn:
			dev.OnMIDI(portID, data)
		case portDAWIn:
			dev.OnDAW(portID, data)
		}
	})

	// 打开配置里的设备端口；失败只告警，可通过 API 重试
	openPorts(ports, cfg.MIDI, log)

	// 7) 下行 Worker
	worker := outbound.NewWorker(queue, ports.Send, cfg.MIDI.SendRate, cfg.MIDI.SendBurst, log, appm)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go worker.Run(workerCtx)

	// 8) HTTP 服务
	handler := api.NewHandler(ports, dev, worker, repo, sess, log)
	httpSrv := httpserver.New(cfg.HTTP, cfg.Metrics.Path, metricsHandler,
		func() bool {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return aggregator.Ready(ctx)
		},
		func(r *gin.Engine) {
			health.RegisterHTTPRoutes(r, aggregator)
			api.RegisterRoutes(r, handler, cfg.Auth, log)
		})

	go func() {
		log.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", zap.Error(err))
		}
	}()

	// 启动即尝试握手，失败不致命（设备可能未接入）
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.MIDI.ResponseTimeout)
		defer cancel()
		if serial, err := dev.Handshake(ctx); err != nil {
			log.Warn("device handshake failed", zap.Error(err))
		} else {
			log.Info("device connected", zap.String("serial", serial))
		}
	}()

	// 信号处理，优雅关闭
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	workerCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
}

// openPorts 按配置打开设备口与 DAW 口
func openPorts(ports *gateway.PortManager, cfg cfgpkg.MIDIConfig, log *zap.Logger) {
	open := []struct {
		id    string
		name  string
		input bool
	}{
		{portMIDIIn, cfg.InPort, true},
		{portMIDIOut, cfg.OutPort, false},
		{portDAWIn, cfg.DAWInPort, true},
		{portDAWOut, cfg.DAWOutPort, false},
	}
	for _, p := range open {
		var err error
		if p.input {
			err = ports.OpenInput(p.id, p.name)
		} else {
			err = ports.OpenOutput(p.id, p.name)
		}
		if err != nil {
			log.Warn("midi port unavailable", zap.String("id", p.id), zap.Error(err))
		}
	}
}
