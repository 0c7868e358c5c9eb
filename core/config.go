package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides, e.g. MULTISAMPLE_AUDIO_BACKEND.
const EnvPrefix = "MULTISAMPLE"

// Config is the file configuration of the multisample tool.
type Config struct {
	Audio struct {
		Backend      string `mapstructure:"backend"`
		Device       string `mapstructure:"device"`
		SampleRate   int    `mapstructure:"sample_rate"`
		Channels     int    `mapstructure:"channels"`
		BufferFrames int    `mapstructure:"buffer_frames"`
	} `mapstructure:"audio"`

	MIDI struct {
		Transport       string           `mapstructure:"transport"` // rtmidi/websocket
		Port            string           `mapstructure:"port"`
		Channel         uint8            `mapstructure:"channel"`
		NoteOnVelocity  uint8            `mapstructure:"note_on_velocity"`
		NoteOffVelocity uint8            `mapstructure:"note_off_velocity"`
		Websocket       *WebsocketConfig `mapstructure:"websocket"`
	} `mapstructure:"midi"`

	Capture struct {
		TimeOn      time.Duration `mapstructure:"time_on"`
		TimeRelease time.Duration `mapstructure:"time_release"`
		TimeBetween time.Duration `mapstructure:"time_between"`
		TrailingGap bool          `mapstructure:"trailing_gap"`
		FirstNote   uint8         `mapstructure:"first_note"`
		LastNote    uint8         `mapstructure:"last_note"`
		NoteSpacing int           `mapstructure:"note_spacing"`
		Retries     int           `mapstructure:"retries"`
	} `mapstructure:"capture"`

	Logging struct {
		Level   string   `mapstructure:"level"`
		Format  string   `mapstructure:"format"`
		Outputs []string `mapstructure:"outputs"`
	} `mapstructure:"logging"`
}

type WebsocketConfig struct {
	URL              string        `mapstructure:"url"`
	AccessToken      string        `mapstructure:"access_token"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
}

// SetDefaults registers the default value of every key. Keys without a
// default are not picked up from the environment.
func SetDefaults(v *viper.Viper) {
	d := DefaultSettings()

	v.SetDefault("audio.backend", "")
	v.SetDefault("audio.device", "")
	v.SetDefault("audio.sample_rate", d.SampleRate)
	v.SetDefault("audio.channels", d.Channels)
	v.SetDefault("audio.buffer_frames", d.BufferFrames)

	v.SetDefault("midi.transport", "rtmidi")
	v.SetDefault("midi.port", "")
	v.SetDefault("midi.channel", d.MIDIChannel)
	v.SetDefault("midi.note_on_velocity", d.NoteOnVelocity)
	v.SetDefault("midi.note_off_velocity", d.NoteOffVelocity)
	v.SetDefault("midi.websocket.url", "")
	v.SetDefault("midi.websocket.access_token", "")
	v.SetDefault("midi.websocket.handshake_timeout", "10s")

	v.SetDefault("capture.time_on", d.TimeOn)
	v.SetDefault("capture.time_release", d.TimeRelease)
	v.SetDefault("capture.time_between", d.TimeBetween)
	v.SetDefault("capture.trailing_gap", d.TrailingGap)
	v.SetDefault("capture.first_note", d.FirstNote)
	v.SetDefault("capture.last_note", d.LastNote)
	v.SetDefault("capture.note_spacing", d.NoteSpacing)
	v.SetDefault("capture.retries", 0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.outputs", []string{"stdout"})
}

// LoadConfig reads the configuration from configPath, or searches ./config.yaml,
// ./config/config.yaml and /etc/multisample/config.yaml when configPath is
// empty. A missing file is only an error when configPath is set.
func LoadConfig(configPath string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/multisample")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// Settings converts the audio, midi and capture sections into capture settings.
func (c Config) Settings() CaptureSettings {
	return CaptureSettings{
		TimeOn:          c.Capture.TimeOn,
		TimeRelease:     c.Capture.TimeRelease,
		TimeBetween:     c.Capture.TimeBetween,
		TrailingGap:     c.Capture.TrailingGap,
		Channels:        c.Audio.Channels,
		SampleRate:      c.Audio.SampleRate,
		BufferFrames:    c.Audio.BufferFrames,
		MIDIChannel:     c.MIDI.Channel,
		NoteOnVelocity:  c.MIDI.NoteOnVelocity,
		NoteOffVelocity: c.MIDI.NoteOffVelocity,
		FirstNote:       c.Capture.FirstNote,
		LastNote:        c.Capture.LastNote,
		NoteSpacing:     c.Capture.NoteSpacing,
	}
}
