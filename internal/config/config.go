package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-bank-ledger/pkg/mysql"
)

// 帳本後端
const (
	BackendMemory = "memory"
	BackendMySQL  = "mysql"
)

// Config 整個服務的設定
// 先讀 yaml 檔，再讓環境變數覆寫，最後補預設值
type Config struct {
	// Backend: "memory" (WAL 持久化) 或 "mysql"
	Backend string `yaml:"backend" env:"LEDGER_BACKEND"`
	// WALPath memory 後端的 WAL 檔案路徑
	WALPath string `yaml:"wal_path" env:"LEDGER_WAL_PATH"`

	HTTPAddr    string `yaml:"http_addr" env:"LEDGER_HTTP_ADDR"`
	MetricsAddr string `yaml:"metrics_addr" env:"LEDGER_METRICS_ADDR"`

	// LockWait 等待帳戶鎖的上限，超過回 busy
	LockWait time.Duration `yaml:"lock_wait" env:"LEDGER_LOCK_WAIT"`
	// Retries 樂觀鎖重試次數
	Retries int `yaml:"retries" env:"LEDGER_RETRIES"`

	MySQL mysql.Config `yaml:"mysql"`
}

// Load 載入設定
// 檔案不存在不算錯 (允許純環境變數或全預設值啟動)
func Load(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendMemory
	}
	if c.WALPath == "" {
		c.WALPath = "wal.log"
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = ":9090"
	}
	if c.LockWait <= 0 {
		c.LockWait = 3 * time.Second
	}
	if c.Retries <= 0 {
		c.Retries = 3
	}
	if c.MySQL.MaxOpenConns == 0 {
		c.MySQL.MaxOpenConns = 100
	}
	if c.MySQL.MaxIdleConns == 0 {
		c.MySQL.MaxIdleConns = 10
	}
	if c.MySQL.ConnMaxLifetime == 0 {
		c.MySQL.ConnMaxLifetime = 30 * time.Minute
	}
	if c.MySQL.Port == 0 {
		c.MySQL.Port = 3306
	}
}
