package core

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"reflect"
	"syscall"
	"time"

	"github.com/encodeous/kevlar/keychain"
	"github.com/encodeous/kevlar/perf"
	"github.com/encodeous/kevlar/state"
	"github.com/encodeous/tint"
	"github.com/goccy/go-yaml"
	slogmulti "github.com/samber/slog-multi"
)

func ReadConfig(path string) (*state.LocalCfg, error) {
	var cfg state.LocalCfg
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	err = yaml.Unmarshal(file, &cfg)
	if err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	err = state.ConfigValidator(&cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Start runs the speaker until it is shut down or fails.
func Start(cfg state.LocalCfg, logLevel slog.Level) error {
	ctx, cancel := context.WithCancelCause(context.Background())

	dispatch := make(chan func(s *state.State) error, 128)

	handlers := make([]slog.Handler, 0)
	handlers = append(handlers,
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:        logLevel,
			AddSource:    false,
			CustomPrefix: string(cfg.Id),
		}))
	if cfg.LogPath != "" {
		err := os.MkdirAll(path.Dir(cfg.LogPath), 0700)
		if err != nil {
			return err
		}
		f, err := os.OpenFile(cfg.LogPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0700)
		if err != nil {
			return err
		}
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: logLevel}))
	}
	logger := slog.New(slogmulti.Fanout(handlers...))

	chains, err := keychain.NewStore(cfg.KeyChains)
	if err != nil {
		return err
	}

	s := state.State{
		Modules:   make(map[string]state.KevModule),
		KeyChains: chains,
		Env: &state.Env{
			Context:         ctx,
			Cancel:          cancel,
			DispatchChannel: dispatch,
			LocalCfg:        cfg,
			Log:             logger,
		},
	}
	for _, ifc := range cfg.Interfaces {
		s.Interfaces = append(s.Interfaces, &state.Interface{
			Name:           ifc.Name,
			RxAuthRequired: ifc.RxAuthRequired,
			CSAs:           ifc.Auth,
		})
	}

	s.Log.Info("init modules")
	err = initModules(&s)
	if err != nil {
		return err
	}
	s.Log.Info("init modules complete")

	s.Log.Info("Kevlar has been initialized. To gracefully exit, send SIGINT or Ctrl+C.")
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-c:
			s.Cancel(errors.New("received shutdown signal"))
		case <-ctx.Done():
		}
	}()

	return MainLoop(&s, dispatch)
}

func initModules(s *state.State) error {
	modules := []state.KevModule{
		&Auth{},
		&Speaker{},
		&Ctl{},
	}
	for _, module := range modules {
		s.Modules[reflect.TypeOf(module).String()] = module
		if err := module.Init(s); err != nil {
			return err
		}
	}
	return nil
}

func MainLoop(s *state.State, dispatch <-chan func(*state.State) error) error {
	s.Log.Debug("started main loop")
	for {
		select {
		case fun := <-dispatch:
			start := time.Now()
			err := fun(s)
			if err != nil {
				s.Log.Error("error occurred during dispatch: ", "error", err)
				s.Cancel(err)
			}
			elapsed := time.Since(start)
			perf.DispatchLatency.Add(float64(elapsed.Microseconds()))
			if elapsed > time.Millisecond*50 {
				s.Log.Warn("dispatch took a long time!", "elapsed", elapsed)
			}
		case <-s.Context.Done():
			s.Log.Info("stopped main loop", "reason", context.Cause(s.Context).Error())
			cleanup(s)
			return nil
		}
	}
}

func cleanup(s *state.State) {
	s.Log.Info("cleaning up modules")
	for moduleName, module := range s.Modules {
		err := module.Cleanup(s)
		if err != nil {
			s.Log.Error("error occurred during cleanup: ", "module", moduleName, "error", err)
		}
	}
	s.Cancel(context.Canceled)
}
