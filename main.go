package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"spiritbox/audio"
	"spiritbox/beep"
	"spiritbox/config"
	"spiritbox/doctor"
	"spiritbox/energy"
	"spiritbox/hotkey"
	"spiritbox/log"
	"spiritbox/mode"
	"spiritbox/shutdown"
)

var version = "dev"

// guiView and guiSelect are set by initGUI before run when started with --gui.
var (
	guiView   view
	guiSelect chan mode.Mode
	guiQuit   func()
)

// initCrashLog sends runtime crash output to crash_log.txt in the log dir.
// It reads --logpath straight from os.Args because it runs before flags are parsed.
func initCrashLog() {
	dir, err := log.ResolveDir(argValue(os.Args[1:], "logpath"))
	if err != nil {
		return
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return
	}
	crashPath := filepath.Join(dir, "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}

// argValue finds --name VALUE or --name=VALUE in args, for the settings
// needed before the CLI parses anything. The last occurrence wins.
func argValue(args []string, names ...string) string {
	val := ""
	for i, arg := range args {
		for _, name := range names {
			for _, flag := range []string{"--" + name, "-" + name} {
				switch {
				case arg == flag && i+1 < len(args):
					val = args[i+1]
				case strings.HasPrefix(arg, flag+"="):
					val = strings.TrimPrefix(arg, flag+"=")
				}
			}
		}
	}
	return val
}

// guiBars reads render.bars from the config named on the command line, since
// the window is built before the CLI runs.
func guiBars(args []string) int {
	path := argValue(args, "config", "c")
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		return config.Default().Render.Bars
	}
	return cfg.Render.Bars
}

func run() {
	if err := newRootCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if guiQuit != nil {
			guiQuit()
		}
		os.Exit(1)
	}
	if guiQuit != nil {
		guiQuit()
	}
}

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:    "spiritbox",
		Usage:   "Sweep the static for words",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   config.Path(),
			},
			&cli.StringFlag{
				Name:  "logpath",
				Usage: "log directory path (default: OS-specific location, use ./ for current dir)",
			},
			&cli.StringFlag{
				Name:  "device",
				Usage: "Use named microphone device",
			},
			&cli.BoolFlag{
				Name:  "setup",
				Usage: "Select microphone device interactively",
			},
			&cli.StringFlag{
				Name:  "mode",
				Usage: "Starting mode: energy, dictionary or proximity",
				Value: mode.Energy.String(),
			},
			&cli.BoolFlag{
				Name:  "headless",
				Usage: "No TUI; read mode commands from stdin",
			},
			&cli.BoolFlag{
				Name:  "gui",
				Usage: "Open a desktop window (builds with -tags gui)",
			},
			&cli.StringFlag{
				Name:   "fake-audio",
				Usage:  "Replay a WAV file instead of opening a microphone",
				Hidden: true,
			},
		},
		Commands: []*cli.Command{
			newDevicesCommand(),
			newDoctorCommand(),
			newVersionCommand(),
		},
		Action: runBox,
	}
}

func newDevicesCommand() *cli.Command {
	return &cli.Command{
		Name:  "devices",
		Usage: "List capture devices",
		Action: func(_ context.Context, _ *cli.Command) error {
			actx, err := audio.NewContext()
			if err != nil {
				return fmt.Errorf("initializing audio: %w", err)
			}
			defer actx.Close()
			devices, err := actx.Devices()
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				fmt.Println("No capture devices found.")
				return nil
			}
			for _, d := range devices {
				suffix := ""
				if audio.IsBluetooth(d.Name) {
					suffix = " (BT!)"
				}
				fmt.Printf("%s%s\n", d.Name, suffix)
			}
			return nil
		},
	}
}

func newDoctorCommand() *cli.Command {
	return &cli.Command{
		Name:  "doctor",
		Usage: "Run system diagnostics and exit",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "keys",
				Usage: "Wait for a Ctrl+Shift+1 press",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			os.Exit(doctor.Run(cfg, cmd.Bool("keys")))
			return nil
		},
	}
}

func newVersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version and exit",
		Action: func(_ context.Context, _ *cli.Command) error {
			fmt.Printf("spiritbox %s\n", version)
			return nil
		},
	}
}

// loadConfig reads the config file and applies flag overrides. Flags are
// looked up from the root so subcommands see them too.
func loadConfig(cmd *cli.Command) (config.Config, error) {
	if err := godotenv.Load(config.DotenvPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	_ = godotenv.Load()

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return cfg, err
	}
	if d := cmd.String("device"); d != "" {
		cfg.Audio.Device = d
	}
	return cfg, nil
}

func startLogging(flagPath, level string) {
	logPath, err := log.ResolveDir(flagPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	log.SetLevel(level)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
}

func openAudio(fakeWAV string) (audio.Context, error) {
	if fakeWAV != "" {
		fake, err := audio.LoadFakeContext(fakeWAV)
		if err != nil {
			return nil, err
		}
		return fake, nil
	}
	return audio.NewContext()
}

// resolveDevice maps the configured name onto a device. An unknown name
// falls back to the system default with a warning.
func resolveDevice(actx audio.Context, name string, setup bool) *audio.DeviceInfo {
	if actx == nil {
		return nil
	}
	if name != "" {
		dev, err := audio.FindDevice(actx, name)
		if err != nil || dev == nil {
			log.Warnf("device not found: %s", name)
			fmt.Fprintf(os.Stderr, "Warning: device %q not found, using system default\n", name)
			return nil
		}
		return dev
	}
	if !setup {
		return nil
	}
	dev, err := audio.SelectDevice(actx)
	if err != nil {
		log.Warnf("device selection failed: %v", err)
		fmt.Printf("Warning: device selection failed: %v\n", err)
		fmt.Println("Falling back to default device")
		return nil
	}
	return dev
}

func runBox(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	startMode, err := mode.ParseMode(cmd.String("mode"))
	if err != nil {
		return err
	}

	startLogging(cmd.String("logpath"), cfg.Log.Level)
	defer log.Close()

	actx, err := openAudio(cmd.String("fake-audio"))
	if err != nil {
		// Energy and Dictionary will show NO MIC; Proximity still works.
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Warning: audio unavailable: %v\n", err)
		actx = nil
	} else {
		defer actx.Close()
	}
	device := resolveDevice(actx, cfg.Audio.Device, cmd.Bool("setup"))
	deviceName := ""
	if device != nil {
		deviceName = device.Name
	}

	headless := cmd.Bool("headless")
	if headless {
		beep.Disable()
	} else {
		go beep.Init()
	}

	selections := make(chan mode.Mode, 1)
	quit := make(chan struct{})

	var v view
	var gate energy.Gate = energy.AllowGate{}
	switch {
	case guiView != nil:
		v = guiView
		go forward(ctx, guiSelect, selections)
	case headless:
		v = newConsoleView(os.Stdout)
	default:
		pg := newPromptGate()
		if cfg.Audio.Confirm {
			gate = pg
		}
		v = tuiView{}
		tuiMu.Lock()
		tuiProgram = NewTUIProgram(cfg.Render.Bars, selections, pg.answers)
		tuiMu.Unlock()
		go func() {
			if _, err := tuiProgram.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
			}
			close(quit)
		}()
		tuiSend(DeviceLineMsg{Text: deviceLineText(deviceName)})
	}

	b := newBox(cfg, actx, device, gate, v)
	defer b.close()

	if !headless {
		if sel, release := registerHotkeys(); sel != nil {
			defer release()
			go forwardSlots(ctx, sel, selections)
		}
	}

	log.SessionStart(startMode.String(), deviceName, b.announcer.Name())
	defer func() { log.SessionEnd(b.presenter.Shown()) }()

	b.sw.request(ctx, startMode)

	if headless {
		go func() {
			runConsole(ctx, b, os.Stdin, os.Stdout)
			close(quit)
		}()
	}

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	for {
		select {
		case m := <-selections:
			b.sw.request(ctx, m)
		case <-sigChan:
			tuiMu.Lock()
			p := tuiProgram
			tuiMu.Unlock()
			if p != nil {
				p.Quit()
			}
			return nil
		case <-quit:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// registerHotkeys binds Ctrl+Shift+1..3. Failure is logged and the box runs
// without global hotkeys.
func registerHotkeys() (*hotkey.Selector, func()) {
	keys := hotkey.NewSlots()
	unregister := func(hks []hotkey.Hotkey) {
		for _, hk := range hks {
			hk.Unregister()
		}
	}
	for i, hk := range keys {
		if err := hk.Register(); err != nil {
			log.Warnf("hotkey ctrl+shift+%d: %v", hotkey.Slots[i], err)
			unregister(keys[:i])
			return nil, nil
		}
	}
	sel := hotkey.NewSelector(keys)
	return sel, func() {
		sel.Close()
		unregister(keys)
	}
}

func forwardSlots(ctx context.Context, sel *hotkey.Selector, out chan mode.Mode) {
	for {
		select {
		case <-ctx.Done():
			return
		case idx := <-sel.Selected():
			if idx >= 0 && idx < len(mode.All) {
				log.Infof("hotkey ctrl+shift+%d", hotkey.Slots[idx])
				offer(out, mode.All[idx])
			}
		}
	}
}

func forward(ctx context.Context, in, out chan mode.Mode) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-in:
			offer(out, m)
		}
	}
}

// wantGUI reports whether --gui was passed. fyne has to own the main thread,
// so this is decided before the CLI parses anything.
func wantGUI() bool {
	for _, arg := range os.Args[1:] {
		if arg == "--gui" || arg == "-gui" {
			return true
		}
	}
	return false
}
