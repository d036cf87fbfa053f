package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"fiveradio/model"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Config 应用配置
type Config struct {
	Catalog CatalogConfig `koanf:"catalog"`
	Player  PlayerConfig  `koanf:"player"`
	Server  ServerConfig  `koanf:"server"`
	Log     LogConfig     `koanf:"log"`
}

type CatalogConfig struct {
	Endpoint string        `koanf:"endpoint"`
	Timeout  time.Duration `koanf:"timeout"` // 电台列表请求超时
}

type PlayerConfig struct {
	Volume        float64       `koanf:"volume"` // 音量 0.0-1.0
	Muted         bool          `koanf:"muted"`
	AttachTimeout time.Duration `koanf:"attach_timeout"` // 0 表示不限时
	StallTimeout  time.Duration `koanf:"stall_timeout"`  // 无数据多久后断开, 0 表示不检测
	SpectrumBands int           `koanf:"spectrum_bands"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type LogConfig struct {
	Level string `koanf:"level"`
	// File receives logs in terminal mode. Empty means the config directory.
	File string `koanf:"file"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		Catalog: CatalogConfig{
			Endpoint: model.DefaultEndpoint,
			Timeout:  10 * time.Second,
		},
		Player: PlayerConfig{
			Volume:        0.7,
			AttachTimeout: 20 * time.Second,
			StallTimeout:  5 * time.Second,
			SpectrumBands: 20,
		},
		Server: ServerConfig{Port: 8080},
		Log:    LogConfig{Level: "info"},
	}
}

// Dir 获取配置目录
func Dir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		// 如果获取失败，使用当前目录
		configDir = "."
	}
	return filepath.Join(configDir, "fiveradio")
}

// DefaultPath is config.yaml inside Dir.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Load 加载配置. An empty path means DefaultPath; a missing file yields the
// defaults. On error the defaults are returned alongside it.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to load defaults: %w", err)
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// 配置文件不存在，返回默认配置
			return DefaultConfig(), nil
		}
		return DefaultConfig(), err
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse %s: %w", path, err)
	}

	// 验证音量范围
	if cfg.Player.Volume < 0 {
		cfg.Player.Volume = 0
	} else if cfg.Player.Volume > 1 {
		cfg.Player.Volume = 1
	}
	if cfg.Player.StallTimeout < 0 {
		cfg.Player.StallTimeout = 0
	}
	if cfg.Player.SpectrumBands <= 0 {
		cfg.Player.SpectrumBands = DefaultConfig().Player.SpectrumBands
	}
	if cfg.Catalog.Endpoint == "" {
		cfg.Catalog.Endpoint = model.DefaultEndpoint
	}

	return cfg, nil
}

// LogPath is where terminal mode writes its log.
func (c Config) LogPath() string {
	if c.Log.File != "" {
		return c.Log.File
	}
	return filepath.Join(Dir(), "fiveradio.log")
}
