package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"time"

	"github.com/hausctl/homecontroller/arduinoctl"
	"github.com/hausctl/homecontroller/config"
	"github.com/hausctl/homecontroller/cover"
	"github.com/hausctl/homecontroller/cyclemon"
	"github.com/hausctl/homecontroller/forecastapi"
	"github.com/hausctl/homecontroller/httpapi"
	"github.com/hausctl/homecontroller/influxstore"
	"github.com/hausctl/homecontroller/meter"
	"github.com/hausctl/homecontroller/mqttclient"
	"github.com/hausctl/homecontroller/mqttctl"
	"github.com/hausctl/homecontroller/notify"
	"github.com/hausctl/homecontroller/radar"
	"github.com/hausctl/homecontroller/radarapi"
	"github.com/hausctl/homecontroller/recorder"
	"github.com/hausctl/homecontroller/schedule"
	"github.com/hausctl/homecontroller/sgready"
	"github.com/hausctl/homecontroller/tuyactl"
	"github.com/hausctl/homecontroller/window"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	slog.Info("Starting home controller...")

	configPath := "homecontroller.json"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	conf, err := config.Read(configPath)
	if err != nil {
		slog.Error("Failed to read config", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// tasks are tracked so shutdown can wait for them before closing the
	// connections they use
	var tasks sync.WaitGroup
	runTask := func(task func()) {
		tasks.Add(1)
		go func() {
			defer tasks.Done()
			task()
		}()
	}

	// downstream connections
	bot, err := notify.NewTelegram(os.Getenv("TELEGRAM_BOT_TOKEN"), conf.Telegram.ChatID)
	if err != nil {
		slog.Error("Failed to create telegram bot", "error", err)
		return
	}

	mqtt, err := mqttclient.Connect(conf.MQTT.Server, conf.MQTT.ClientID, conf.MQTT.User, os.Getenv("MQTT_PASSWORD"))
	if err != nil {
		slog.Error("Failed to connect MQTT", "error", err)
		return
	}

	influx := influxstore.New(conf.Influx.URL, os.Getenv("INFLUXDB_TOKEN"), conf.Influx.Org, conf.Influx.Bucket, time.Minute)

	// telemetry pipeline: meter -> recorder -> influx
	siteMeter := meter.New(conf.Meter.Host)
	runTask(func() { siteMeter.Run(ctx, time.Duration(conf.Meter.PollIntervalSecs)*time.Second) })

	rec, err := recorder.New(conf.BufferFile, influx)
	if err != nil {
		slog.Error("Failed to create recorder", "error", err)
		return
	}
	runTask(func() { rec.Run(ctx) })
	runTask(func() {
		for {
			select {
			case <-ctx.Done():
				return
			case reading := <-siteMeter.Readings:
				rec.Readings <- reading
			}
		}
	})

	// weather schedule
	thresholds := schedule.DefaultThresholds()
	if conf.Schedule.Thresholds != nil {
		thresholds = *conf.Schedule.Thresholds
	}
	builder := schedule.NewBuilder(thresholds, conf.Location.Latitude, conf.Location.Longitude)
	holder := &schedule.Holder{}
	forecast := forecastapi.New(conf.Schedule.ForecastURL)
	refreshSchedule := func(t time.Time) {
		points, err := forecast.Fetch()
		if err != nil {
			slog.Error("Failed to fetch weather forecast", "error", err)
			return
		}
		entries, err := builder.Build(points, t)
		if err != nil {
			slog.Error("Failed to build weather schedule", "error", err)
			return
		}
		holder.Replace(entries, t)
		slog.Info("Weather schedule updated", "entries", len(entries))
	}
	refreshSchedule(time.Now())
	runTask(func() {
		runPeriodic(ctx, time.Duration(conf.Schedule.RefreshIntervalMins)*time.Minute, refreshSchedule)
	})

	// radar correction
	detector := &radar.Detector{}
	poller := radar.NewPoller(radarapi.New(conf.Radar.URL), detector, holder, conf.Cover.CloseOn)
	runTask(func() { poller.Run(ctx, time.Duration(conf.Radar.PollIntervalMins)*time.Minute) })

	// window controller, driven by bot commands and the cover coupling
	tuya := tuyactl.NewClient(conf.Tuya.BaseURL, conf.Tuya.ClientID, os.Getenv("TUYA_SECRET"))
	windowPlug := tuyactl.NewPlug(tuya, conf.Window.PlugDeviceID, time.Duration(conf.Window.DriveTimeSecs)*time.Second)
	win := window.New(windowPlug, bot)
	runTask(func() { win.Run(ctx) })
	bot.Handle("fenster", func(args []string) {
		handleWindowCommand(ctx, win, args)
	})

	// cover engine
	backends := []cover.Backend{}
	if conf.Cover.Arduino != nil {
		arduino, err := arduinoctl.New(conf.Cover.Arduino.Hostname, conf.Cover.Arduino.Port)
		if err != nil {
			slog.Error("Failed to create arduino backend", "error", err)
			return
		}
		backends = append(backends, arduino)
	}
	if conf.Cover.TuyaDeviceID != "" {
		backends = append(backends, tuyactl.NewCover(tuya, conf.Cover.TuyaDeviceID))
	}
	if conf.Cover.MQTTTopic != "" {
		backends = append(backends, mqttctl.New(mqtt, conf.Cover.MQTTTopic))
	}
	coverEngine := cover.New(cover.Config{
		CloseOn:    conf.Cover.CloseOn,
		Backends:   backends,
		Notifier:   bot,
		Window:     win,
		Schedule:   holder,
		Raining:    detector.Raining,
		ClosedText: conf.Cover.ClosedText,
		OpenedText: conf.Cover.OpenedText,
	})
	runTask(func() { coverEngine.Run(ctx) })

	// grid-responsive demand engine
	gridImport := mqttclient.NewPowerWindow(10)
	if conf.MQTT.PowerTopic != "" {
		if err := mqtt.Subscribe(conf.MQTT.PowerTopic, gridImport.Handler()); err != nil {
			slog.Error("Failed to subscribe power topic", "error", err)
			return
		}
	}
	demandEngine := sgready.New(sgready.Config{
		Store:               influx,
		Relays:              sgready.NewRelays(&sgready.BarionetDriver{BaseURL: conf.SGReady.BarionetURL}),
		PVHighWatts:         conf.SGReady.PVHighWatts,
		BatteryMinSoC:       conf.SGReady.BatteryMinSoC,
		SelfSufficiencyLow:  conf.SGReady.SelfSufficiencyLow,
		SelfSufficiencyHigh: conf.SGReady.SelfSufficiencyHigh,
		RunningWatts:        conf.SGReady.RunningWatts,
		UsePriceTrend:       conf.SGReady.UsePriceTrend,
		MinPriceSpread:      conf.SGReady.MinPriceSpread,
		GridImport:          gridImport,
		GridImportWatts:     conf.SGReady.GridImportWatts,
	})
	runTask(func() { demandEngine.Run(ctx, time.Duration(conf.SGReady.UpdateIntervalMins)*time.Minute) })

	// appliance cycle monitors
	for _, mon := range conf.CycleMonitors {
		monitor := cyclemon.New(mon.Device, bot)
		if err := mqtt.Subscribe(mon.Topic, monitor.HandleMessage); err != nil {
			slog.Error("Failed to subscribe cycle topic", "device", mon.Device, "error", err)
			return
		}
	}

	// status endpoint
	if conf.HTTPAddr != "" {
		api := httpapi.New(conf.HTTPAddr, func() httpapi.Status {
			return httpapi.Status{
				Cover:               string(coverEngine.State()),
				Window:              string(win.State()),
				SGReady:             demandEngine.Mode().String(),
				Raining:             detector.Raining(),
				ScheduleRefreshedAt: holder.RefreshedAt(),
			}
		})
		runTask(func() { api.Run(ctx) })
	}

	runTask(func() { bot.Run(ctx) })

	// wait for a ctrl-c interrupt before exiting
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt)
	<-signalChan

	// stop all tasks first, then close the downstream connections, so no
	// in-flight cycle references a closed resource
	cancel()
	tasks.Wait()
	mqtt.Disconnect()
	influx.Close()

	slog.Info("Exiting")
}

// runPeriodic invokes fn on every tick until the context is cancelled.
func runPeriodic(ctx context.Context, interval time.Duration, fn func(t time.Time)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			fn(t)
		}
	}
}

// handleWindowCommand parses "/fenster auf [minutes]" and "/fenster zu".
func handleWindowCommand(ctx context.Context, win *window.Controller, args []string) {
	if len(args) == 0 {
		return
	}
	now := time.Now()

	var err error
	switch args[0] {
	case "auf":
		if len(args) > 1 {
			minutes, parseErr := strconv.Atoi(args[1])
			if parseErr != nil {
				slog.Warn("Unparsable window duration", "arg", args[1])
				return
			}
			err = win.OpenFor(ctx, now, time.Duration(minutes)*time.Minute)
		} else {
			err = win.Open(ctx, now)
		}
	case "zu":
		err = win.Close(ctx, now)
	default:
		slog.Warn("Unknown window command", "arg", args[0])
		return
	}
	if err != nil {
		slog.Error("Window command failed", "error", err)
	}
}
