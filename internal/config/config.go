package config

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

type (
	Config struct {
		TelegramAPIToken  string `env:"TOKEN,required"`
		LogLevel          int    `env:"LOG_LEVEL,default=2"`
		DotPath           string `env:"DOT_PATH,default=~/.chatwarden"`
		MetricsListenAddr string `env:"METRICS_LISTEN_ADDR,default=:2112"`
		Moderation        Moderation
		Verification      Verification
	}

	Moderation struct {
		FloodLimit          int           `env:"FLOOD_LIMIT,default=5"`
		FloodWindow         time.Duration `env:"FLOOD_WINDOW,default=1m"`
		SimilarityThreshold float64       `env:"SIMILARITY_THRESHOLD,default=0.8"`
		MaxWarnings         int           `env:"MAX_WARNINGS,default=3"`
		MuteDuration        time.Duration `env:"MUTE_DURATION,default=10m"`
		MaxFileSize         int64         `env:"MAX_FILE_SIZE,default=20971520"`
	}

	Verification struct {
		CaptchaEnabled    bool          `env:"CAPTCHA_ENABLED,default=true"`
		CaptchaTimeout    time.Duration `env:"CAPTCHA_TIMEOUT,default=5m"`
		CaptchaDifficulty string        `env:"CAPTCHA_DIFFICULTY,default=medium"`
		MaxAttempts       int           `env:"CAPTCHA_MAX_ATTEMPTS,default=3"`
		RequiredChannel   string        `env:"REQUIRED_CHANNEL"`
		SweepInterval     time.Duration `env:"VERIFICATION_SWEEP_INTERVAL,default=1m"`
	}
)

var (
	once         sync.Once
	globalConfig = &Config{}
	globalErr    error
)

func Load() (Config, error) {
	once.Do(func() {
		cfg := &Config{}
		envcfg := envconfig.Config{
			Lookuper: envconfig.PrefixLookuper("CW_", envconfig.OsLookuper()),
			Target:   cfg,
		}
		if err := envconfig.ProcessWith(context.Background(), &envcfg); err != nil {
			globalErr = fmt.Errorf("process env config: %w", err)
			return
		}
		expanded, err := homedir.Expand(cfg.DotPath)
		if err != nil {
			globalErr = fmt.Errorf("expand dot path: %w", err)
			return
		}
		cfg.DotPath = expanded
		cfg.Verification.RequiredChannel = strings.TrimPrefix(cfg.Verification.RequiredChannel, "@")
		log.Traceln("loaded config")
		globalConfig = cfg
	})
	return *globalConfig, globalErr
}

func Get() Config {
	cfg, err := Load()
	if err != nil {
		log.WithField("error", err.Error()).Error("cant load config")
	}
	return cfg
}
