package conf

import (
	"fmt"
	"os"

	"github.com/dremio-hub/dremio-monitor/collector"
	"github.com/dremio-hub/dremio-monitor/dremio"
	"github.com/dremio-hub/dremio-monitor/pkg/cfg"
	"github.com/dremio-hub/dremio-monitor/pkg/httpx"
	"github.com/dremio-hub/dremio-monitor/pkg/logx"
	"github.com/dremio-hub/dremio-monitor/pusher"
	"github.com/dremio-hub/dremio-monitor/writer"

	"github.com/pkg/errors"
)

type ConfigType struct {
	Global GlobalConfig
	Log    logx.Config
	HTTP   httpx.Config
	Scrape collector.Options

	Pushgw        pusher.Options
	WriterOpt     writer.GlobalOpt
	RemoteWriters []writer.Options

	Clusters []dremio.ClusterConfig
}

type GlobalConfig struct {
	RunMode string
}

func InitConfig(configDir string) (*ConfigType, error) {
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		return nil, errors.Errorf("configuration directory %s not exist", configDir)
	}

	var config = new(ConfigType)

	if err := cfg.LoadConfigByDir(configDir, config); err != nil {
		return nil, fmt.Errorf("failed to load configs of directory: %s error: %s", configDir, err)
	}

	if config.Global.RunMode == "" {
		config.Global.RunMode = "release"
	}

	if config.HTTP.ShutdownTimeout <= 0 {
		config.HTTP.ShutdownTimeout = 3
	}

	if len(config.Clusters) == 0 {
		return nil, errors.New("no [[Clusters]] section configured")
	}

	seen := make(map[string]struct{}, len(config.Clusters))
	for i := range config.Clusters {
		if err := config.Clusters[i].PreCheck(); err != nil {
			return nil, err
		}

		name := config.Clusters[i].Name
		if _, dup := seen[name]; dup {
			return nil, errors.Errorf("duplicate cluster name: %s", name)
		}
		seen[name] = struct{}{}
	}

	return config, nil
}
