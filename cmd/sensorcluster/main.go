// Command sensorcluster runs the sensor node: it polls a temperature probe and a
// presence radar, drives an alert buzzer and a status LED from MQTT commands,
// and reports over MQTT, HTTP and Prometheus.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sweeney/sensorcluster/internal/clock"
	"github.com/sweeney/sensorcluster/internal/config"
	"github.com/sweeney/sensorcluster/internal/gpio"
	"github.com/sweeney/sensorcluster/internal/history"
	"github.com/sweeney/sensorcluster/internal/logger"
	"github.com/sweeney/sensorcluster/internal/logic"
	"github.com/sweeney/sensorcluster/internal/metrics"
	"github.com/sweeney/sensorcluster/internal/mqtt"
	"github.com/sweeney/sensorcluster/internal/onewire"
	"github.com/sweeney/sensorcluster/internal/scheduler"
	"github.com/sweeney/sensorcluster/internal/status"
	"github.com/sweeney/sensorcluster/internal/web"
)

const clientIDPrefix = "sensorcluster-"

// flags holds command-line overrides applied on top of the loaded config.
type flags struct {
	configPath string
	logLevel   string
	httpAddr   string
	printState bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "sensorcluster",
		Short: "Run the sensor cluster node.",
		Long: `Runs the node's control loop: temperature and presence polling,
alert and status LED commands over MQTT, heartbeat and status reporting.

Configuration is read from the YAML file given by --config (optional) and
SENSORCLUSTER_* environment variables; flags override both.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}

			level, ok := logger.ParseLevel(cfg.Logging.Level)
			log := logger.New(level)
			defer log.Sync() //nolint:errcheck
			if !ok {
				log.Warnw("unknown log level, using info", "level", cfg.Logging.Level)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, f.printState, log)
		},
	}

	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "path to YAML configuration file")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&f.httpAddr, "http", "", `HTTP status address ("off" disables)`)
	cmd.Flags().BoolVar(&f.printState, "print-state", false, "print current sensor readings and exit")

	return cmd
}

// loadConfig loads the configuration and applies flags the user set explicitly.
func loadConfig(cmd *cobra.Command, f flags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	if cmd.Flags().Changed("http") {
		cfg.HTTP.Addr = f.httpAddr
		if f.httpAddr == "off" {
			cfg.HTTP.Addr = ""
		}
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, printState bool, log *zap.SugaredLogger) error {
	// Initialize GPIO
	radar, err := gpio.NewRealLine(cfg.GPIO.Chip, cfg.GPIO.PresencePin)
	if err != nil {
		return fmt.Errorf("init presence input: %w", err)
	}
	defer radar.Close()

	probe := onewire.NewProbe(cfg.OneWire.DevicesPath, cfg.OneWire.DeviceID)

	// Print state mode
	if printState {
		return printReadings(radar, probe)
	}

	buzzer, err := gpio.NewRealSwitch(cfg.GPIO.Chip, cfg.GPIO.AlertPin)
	if err != nil {
		return fmt.Errorf("init alert output: %w", err)
	}
	defer buzzer.Close()

	led, err := gpio.NewRealPixel(cfg.GPIO.Chip, cfg.GPIO.RedPin, cfg.GPIO.GreenPin, cfg.GPIO.BluePin)
	if err != nil {
		return fmt.Errorf("init status led: %w", err)
	}
	defer led.Close()

	if id, err := probe.DeviceID(); err != nil {
		log.Warnw("no temperature probe yet", "error", err)
	} else {
		log.Infow("temperature probe found", "id", id)
	}
	thermometer := onewire.NewCached(probe, time.Duration(logic.TemperaturePollInterval)*time.Millisecond, log)
	thermometer.Start(ctx)
	defer thermometer.Close()

	mac, ip := hostIdentity()
	id := status.Identity{
		Device:   cfg.Device,
		IP:       ip,
		MAC:      mac,
		ClientID: clientID(cfg.MQTT.ClientID, mac),
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Initialize MQTT
	topics := mqtt.NewTopics(cfg.MQTT.BaseTopic)
	transport := mqtt.NewRealTransport(mqtt.Options{
		Broker:      cfg.BrokerURL(),
		ClientID:    id.ClientID,
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
		StatusTopic: topics.Status,
		InboxSize:   cfg.MQTT.InboxSize,
		OnDrop:      m.InboxDropped.Inc,
	}, log)

	hist := openHistory(ctx, cfg, log)

	sched := scheduler.New(clock.NewMonotonic(), transport, topics, scheduler.Hardware{
		Alert:       buzzer,
		Indicator:   led,
		Thermometer: thermometer,
		Presence:    radar,
	}, scheduler.Options{
		Device:  cfg.Device,
		IP:      func() string { return id.IP },
		Metrics: m,
		History: hist,
		Log:     log,
	})

	tracker := status.NewTracker(time.Now(), id, status.Config{
		Broker:      cfg.BrokerURL(),
		BaseTopic:   cfg.MQTT.BaseTopic,
		HTTPAddr:    cfg.HTTP.Addr,
		LoopMs:      cfg.LoopInterval().Milliseconds(),
		HeartbeatMs: int64(scheduler.HeartbeatInterval),
		ReconnectMs: scheduler.DefaultReconnectInterval.Milliseconds(),
	})
	sched.AddDuty(sched.TrackerDuty(tracker))

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, reg)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorw("http server error", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Infow("http status server listening", "addr", cfg.HTTP.Addr)
	}

	sched.Init()

	log.Infow("started",
		"device", cfg.Device,
		"broker", cfg.BrokerURL(),
		"client_id", id.ClientID,
		"base_topic", cfg.MQTT.BaseTopic,
		"ip", id.IP,
		"loop", cfg.LoopInterval(),
	)

	ticker := time.NewTicker(cfg.LoopInterval())
	defer ticker.Stop()

	return sched.Run(ctx, ticker.C)
}

// openHistory connects the optional InfluxDB sink. Failure is not fatal.
func openHistory(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) history.Writer {
	if !cfg.InfluxDB.Enabled {
		return history.Nop{}
	}
	w, err := history.Connect(ctx, history.Options{
		Enabled: true,
		URL:     cfg.InfluxDB.URL,
		Token:   cfg.InfluxDB.Token,
		Org:     cfg.InfluxDB.Org,
		Bucket:  cfg.InfluxDB.Bucket,
		Device:  cfg.Device,
	}, log)
	if err != nil {
		log.Warnw("history disabled", "error", err)
		return history.Nop{}
	}
	log.Infow("history enabled", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	return w
}

func printReadings(radar logic.Line, probe logic.Thermometer) error {
	present, err := radar.Read()
	if err != nil {
		return fmt.Errorf("read presence: %w", err)
	}
	temp := "unavailable"
	if c, err := probe.ReadCelsius(); err == nil && c != logic.DisconnectedC {
		temp = logic.FormatCelsius(c - logic.TemperatureOffset)
	}
	fmt.Printf("presence: %s, temperature: %s\n", logic.PresencePayload(present), temp)
	return nil
}

// clientID returns override if set, otherwise the prefix plus the MAC without colons.
func clientID(override, mac string) string {
	if override != "" {
		return override
	}
	if mac == "" {
		return clientIDPrefix + "unknown"
	}
	return clientIDPrefix + strings.ReplaceAll(mac, ":", "")
}

// pi-helper env var written to /run/pi-helper.env.
const envNetworkIP = "NETWORK_IP"

// iface is the subset of interface data identity selection needs.
type iface struct {
	mac      net.HardwareAddr
	up       bool
	loopback bool
	ips      []net.IP
}

// hostIdentity returns the MAC and IPv4 address of the first usable interface.
// A pi-helper supplied IP takes precedence.
func hostIdentity() (mac, ip string) {
	var list []iface
	if ifs, err := net.Interfaces(); err == nil {
		for _, i := range ifs {
			entry := iface{
				mac:      i.HardwareAddr,
				up:       i.Flags&net.FlagUp != 0,
				loopback: i.Flags&net.FlagLoopback != 0,
			}
			if addrs, err := i.Addrs(); err == nil {
				for _, a := range addrs {
					if n, ok := a.(*net.IPNet); ok {
						entry.ips = append(entry.ips, n.IP)
					}
				}
			}
			list = append(list, entry)
		}
	}

	mac, ip = pickIdentity(list)
	if v := os.Getenv(envNetworkIP); v != "" {
		ip = v
	}
	return mac, ip
}

func pickIdentity(list []iface) (mac, ip string) {
	for _, i := range list {
		if i.loopback || len(i.mac) == 0 {
			continue
		}
		if mac == "" {
			mac = i.mac.String()
		}
		if !i.up {
			continue
		}
		for _, addr := range i.ips {
			if v4 := addr.To4(); v4 != nil {
				return i.mac.String(), v4.String()
			}
		}
	}
	return mac, "0.0.0.0"
}
