package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/integrii/flaggy"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/lisuiheng/multisample-go/audio"
	_ "github.com/lisuiheng/multisample-go/audio/all"
	"github.com/lisuiheng/multisample-go/core"
	"github.com/lisuiheng/multisample-go/logger"
	"github.com/lisuiheng/multisample-go/pkg/interfaces"
	"github.com/lisuiheng/multisample-go/protocols/rtmidi"
	"github.com/lisuiheng/multisample-go/protocols/websocket"
	"github.com/lisuiheng/multisample-go/utils"
)

const (
	AppName = "multisample"
	AppDesc = "Capture one audio sample per MIDI note from an external instrument"
)

var version = "unknown"

type options struct {
	configPath string
	debug      bool
	backend    string
	device     string
	port       string
	notes      string

	listBackends bool
	listDevices  bool
	capture      bool
	showHelp     func()
}

func main() {
	opts, err := parseFlags()
	chk(err)

	cfg, err := core.LoadConfig(opts.configPath)
	chk(err)
	applyFlags(&cfg, opts)

	chk(initLogger(cfg, opts.debug))
	defer func() {
		if err := logger.Close(); err != nil {
			fmt.Fprintln(os.Stderr, "failed to close log files:", err)
		}
	}()

	switch {
	case opts.listBackends:
		listBackends()
	case opts.listDevices:
		err = listDevices(cfg)
	case opts.capture:
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		err = capture(ctx, cfg, opts.notes)
		stop()
	default:
		opts.showHelp()
	}

	if err != nil {
		logger.Error("command failed", "error", err)
		_ = logger.Close()
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options

	parser := flaggy.NewParser(AppName)
	parser.Description = AppDesc
	parser.Version = version

	listBackendsCmd := flaggy.NewSubcommand("list-backends")
	listBackendsCmd.ShortName = "lb"
	listBackendsCmd.Description = "list all supported capture backends"

	listDevicesCmd := flaggy.NewSubcommand("list-devices")
	listDevicesCmd.ShortName = "ld"
	listDevicesCmd.Description = "list all input devices for a backend"

	captureCmd := flaggy.NewSubcommand("capture")
	captureCmd.Description = "trigger and record every configured note"
	captureCmd.String(&opts.notes, "n", "notes", "comma separated note list, overrides the configured range")
	captureCmd.String(&opts.port, "p", "port", "MIDI output port name")

	parser.AttachSubcommand(listBackendsCmd, 1)
	parser.AttachSubcommand(listDevicesCmd, 1)
	parser.AttachSubcommand(captureCmd, 1)

	parser.String(&opts.configPath, "c", "config", "path to config file (default searches ./config.yaml, ./config/config.yaml, /etc/multisample/config.yaml)")
	parser.Bool(&opts.debug, "", "debug", "log debug output to stdout")
	parser.String(&opts.backend, "b", "backend", "capture backend name")
	parser.String(&opts.device, "d", "device", "input device name")

	if err := parser.Parse(); err != nil {
		return opts, err
	}

	opts.listBackends = listBackendsCmd.Used
	opts.listDevices = listDevicesCmd.Used
	opts.capture = captureCmd.Used
	opts.showHelp = parser.ShowHelp
	return opts, nil
}

// applyFlags lets command line flags override the file configuration.
func applyFlags(cfg *core.Config, opts options) {
	if opts.backend != "" {
		cfg.Audio.Backend = opts.backend
	}
	if opts.device != "" {
		cfg.Audio.Device = opts.device
	}
	if opts.port != "" {
		cfg.MIDI.Port = opts.port
	}
	if cfg.Audio.Backend == "" {
		cfg.Audio.Backend = audio.DefaultBackend()
	}
}

func initLogger(cfg core.Config, debug bool) error {
	logCfg := logger.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Outputs: cfg.Logging.Outputs,
	}

	if debug {
		logCfg.Level = "debug"
		logCfg.Outputs = []string{"stdout"}
	}

	if err := logger.Init(logCfg); err != nil {
		return err
	}
	logger.Debug("logger initialized", "level", logCfg.Level)
	return nil
}

func listBackends() {
	def := audio.DefaultBackend()
	for _, name := range audio.BackendNames() {
		star := ' '
		if name == def {
			star = '*'
		}
		fmt.Printf("- %s %c\n", name, star)
	}
}

func listDevices(cfg core.Config) (err error) {
	backend, err := audio.InitBackend(cfg.Audio.Backend)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, backend.Close()) }()

	devices, err := backend.Devices()
	if err != nil {
		return errors.Wrap(err, "failed to get devices")
	}

	defaultDevice, _ := backend.DefaultDevice()

	fmt.Printf("all input devices for %q backend. '*' marks default\n", cfg.Audio.Backend)
	for _, dev := range devices {
		star := ' '
		if defaultDevice != nil && dev.Name() == defaultDevice.Name() {
			star = '*'
		}
		fmt.Printf("- %s %c\n", dev.Name(), star)
	}
	return nil
}

func capture(ctx context.Context, cfg core.Config, noteList string) (err error) {
	settings := cfg.Settings()
	notes := settings.Notes()
	if noteList != "" {
		if notes, err = parseNotes(noteList); err != nil {
			return err
		}
	}

	backend, err := audio.InitBackend(cfg.Audio.Backend)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, backend.Close()) }()

	device, err := audio.GetDevice(backend, cfg.Audio.Device)
	if err != nil {
		return err
	}

	out, err := openOutput(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, out.Close()) }()

	capturer := core.NewNoteCapturer(device, core.WithLogger(logger.Logger()))
	if !capturer.ApplyConfig(settings) {
		return fmt.Errorf("invalid capture settings: channels must be 1 or 2, got %d", settings.Channels)
	}

	logger.Info("starting capture",
		"backend", cfg.Audio.Backend,
		"device", device.Name(),
		"output", out.Name(),
		"notes", notes)

	var samples []core.NoteSample
	err = utils.Retry(ctx, cfg.Capture.Retries, utils.NewExponentialBackoff(), func(attempt int) error {
		if attempt > 0 {
			logger.Warn("retrying capture", "attempt", attempt)
		}
		var err error
		samples, err = capturer.CaptureNoteList(out, notes)
		return err
	})
	if err != nil {
		return err
	}

	report(os.Stdout, notes, samples, settings.Channels)
	return nil
}

func openOutput(ctx context.Context, cfg core.Config) (interfaces.Output, error) {
	switch cfg.MIDI.Transport {
	case "", "rtmidi":
		out, err := rtmidi.Open(cfg.MIDI.Port)
		if err != nil {
			rtmidi.CloseDriver()
			return nil, err
		}
		return &driverOutput{Output: out}, nil
	case "websocket":
		if cfg.MIDI.Websocket == nil || cfg.MIDI.Websocket.URL == "" {
			return nil, errors.New("midi.websocket.url is required for the websocket transport")
		}
		bridge, err := websocket.Dial(ctx, websocket.Config{
			URL:              cfg.MIDI.Websocket.URL,
			AccessToken:      cfg.MIDI.Websocket.AccessToken,
			HandshakeTimeout: cfg.MIDI.Websocket.HandshakeTimeout,
		}, logger.Logger())
		if err != nil {
			return nil, err
		}
		return bridge, nil
	}
	return nil, errors.Errorf("unknown midi transport %q", cfg.MIDI.Transport)
}

// driverOutput releases the RtMidi driver together with its port.
type driverOutput struct {
	*rtmidi.Output
}

func (o *driverOutput) Close() error {
	defer rtmidi.CloseDriver()
	return o.Output.Close()
}

func chk(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
