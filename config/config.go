// Package config reads the controller configuration from a JSON file.
// Secrets (API tokens, passwords) are taken from the environment instead of
// the file.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hausctl/homecontroller/schedule"
)

type LocationConfig struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type ScheduleConfig struct {
	ForecastURL         string               `json:"forecastUrl"`
	RefreshIntervalMins int                  `json:"refreshIntervalMins"`
	Thresholds          *schedule.Thresholds `json:"thresholds"` // nil = defaults
}

type RadarConfig struct {
	URL              string `json:"url"`
	PollIntervalMins int    `json:"pollIntervalMins"`
}

type ArduinoConfig struct {
	Hostname string `json:"hostname"`
	Port     int    `json:"port"`
}

type TuyaConfig struct {
	BaseURL  string `json:"baseUrl"`
	ClientID string `json:"clientId"`
	// access secret is specified via the TUYA_SECRET env var
}

type CoverConfig struct {
	// CloseOn is the schedule classification during which the cover is
	// closed: "good" for a sunscreen, "bad" for a protective shutter.
	CloseOn      schedule.Classification `json:"closeOn"`
	Arduino      *ArduinoConfig          `json:"arduino"`
	TuyaDeviceID string                  `json:"tuyaDeviceId"`
	MQTTTopic    string                  `json:"mqttTopic"`
	ClosedText   string                  `json:"closedText"`
	OpenedText   string                  `json:"openedText"`
}

type WindowConfig struct {
	PlugDeviceID  string `json:"plugDeviceId"`
	DriveTimeSecs int    `json:"driveTimeSecs"`
}

type SGReadyConfig struct {
	BarionetURL         string  `json:"barionetUrl"`
	UpdateIntervalMins  int     `json:"updateIntervalMins"`
	PVHighWatts         float64 `json:"pvHighWatts"`
	BatteryMinSoC       float64 `json:"batteryMinSoc"`
	SelfSufficiencyLow  float64 `json:"selfSufficiencyLow"`
	SelfSufficiencyHigh float64 `json:"selfSufficiencyHigh"`
	RunningWatts        float64 `json:"runningWatts"`
	UsePriceTrend       bool    `json:"usePriceTrend"`
	MinPriceSpread      float64 `json:"minPriceSpread"`
	GridImportWatts     float64 `json:"gridImportWatts"`
}

type MQTTConfig struct {
	Server   string `json:"server"`
	ClientID string `json:"clientId"`
	User     string `json:"user"`
	// password is specified via the MQTT_PASSWORD env var
	PowerTopic string `json:"powerTopic"`
}

type TelegramConfig struct {
	ChatID int64 `json:"chatId"`
	// bot token is specified via the TELEGRAM_BOT_TOKEN env var
}

type InfluxConfig struct {
	URL    string `json:"url"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
	// token is specified via the INFLUXDB_TOKEN env var
}

type MeterConfig struct {
	Host             string `json:"host"`
	PollIntervalSecs int    `json:"pollIntervalSecs"`
}

type CycleMonitorConfig struct {
	Device string `json:"device"`
	Topic  string `json:"topic"`
}

type Config struct {
	Location      LocationConfig       `json:"location"`
	Schedule      ScheduleConfig       `json:"schedule"`
	Tuya          TuyaConfig           `json:"tuya"`
	Radar         RadarConfig          `json:"radar"`
	Cover         CoverConfig          `json:"cover"`
	Window        WindowConfig         `json:"window"`
	SGReady       SGReadyConfig        `json:"sgReady"`
	MQTT          MQTTConfig           `json:"mqtt"`
	Telegram      TelegramConfig       `json:"telegram"`
	Influx        InfluxConfig         `json:"influx"`
	Meter         MeterConfig          `json:"meter"`
	CycleMonitors []CycleMonitorConfig `json:"cycleMonitors"`
	BufferFile    string               `json:"bufferFile"`
	HTTPAddr      string               `json:"httpAddr"`
}

func Read(path string) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var config Config
	err = json.Unmarshal(content, &config)
	if err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	return config, nil
}
