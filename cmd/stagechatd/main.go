package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/matheus3301/stagechat/internal/config"
	"github.com/matheus3301/stagechat/internal/daemon"
	"github.com/matheus3301/stagechat/internal/instance"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	instanceFlag := flag.String("instance", "", "instance name (overrides config default)")
	configFlag := flag.String("config", "", "config file (default ~/.stagechat/config.toml)")
	envFlag := flag.String("env-file", ".env", "optional dotenv file with STAGECHAT_* overrides")
	flag.Parse()

	// A missing .env is normal.
	if err := godotenv.Load(*envFlag); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "error: load %s: %v\n", *envFlag, err)
		os.Exit(1)
	}

	configPath := *configFlag
	if configPath == "" {
		configPath = instance.ConfigPath()
	}
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: load config: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnv()

	name, err := instance.Resolve(*instanceFlag, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{Instance: name, Config: cfg}),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
	)

	app.Run()
}
