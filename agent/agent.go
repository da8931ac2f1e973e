package agent

import (
	"context"
	"net/http"
	"sync"

	"github.com/dremio-hub/dremio-monitor/collector"
	"github.com/dremio-hub/dremio-monitor/conf"
	"github.com/dremio-hub/dremio-monitor/dremio"
	"github.com/dremio-hub/dremio-monitor/pkg/httpx"
	"github.com/dremio-hub/dremio-monitor/pkg/logx"
	"github.com/dremio-hub/dremio-monitor/pusher"
	"github.com/dremio-hub/dremio-monitor/writer"

	"github.com/gin-gonic/gin"
	"github.com/toolkits/pkg/logger"
)

// Initialize wires the agent together and starts the scrape loops plus the
// self HTTP server. The returned function tears everything down in order.
func Initialize(configDir string) (func(), error) {
	config, err := conf.InitConfig(configDir)
	if err != nil {
		return nil, err
	}

	logxClean, err := logx.Init(config.Log)
	if err != nil {
		return nil, err
	}

	scrapers, err := buildScrapers(config)
	if err != nil {
		logxClean()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	wg := new(sync.WaitGroup)

	for _, sc := range scrapers {
		sc.Start(ctx, wg)
		logger.Infof("cluster %s: scrape loop started", sc.Cluster())
	}

	r := httpx.GinEngine(config.Global.RunMode, config.HTTP)
	r.GET("/api/dremio-monitor/health", healthHandler(scrapers))

	httpClean := httpx.Init(config.HTTP, r)

	return func() {
		cancel()
		wg.Wait()
		httpClean()
		logxClean()
	}, nil
}

// RunOnce executes one scrape round per cluster and returns the first
// failure, for cron style deployments.
func RunOnce(configDir string) error {
	config, err := conf.InitConfig(configDir)
	if err != nil {
		return err
	}

	logxClean, err := logx.Init(config.Log)
	if err != nil {
		return err
	}
	defer logxClean()

	scrapers, err := buildScrapers(config)
	if err != nil {
		return err
	}

	var firstErr error
	for _, sc := range scrapers {
		if err := sc.RunRound(context.Background()); err != nil {
			logger.Errorf("cluster %s: scrape round failed: %v", sc.Cluster(), err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

func buildScrapers(config *conf.ConfigType) ([]*collector.Scraper, error) {
	p, err := pusher.New(config.Pushgw)
	if err != nil {
		return nil, err
	}

	ws, err := writer.NewWriters(config.WriterOpt, config.RemoteWriters)
	if err != nil {
		return nil, err
	}

	scrapers := make([]*collector.Scraper, 0, len(config.Clusters))
	for _, cluster := range config.Clusters {
		client, err := dremio.NewClient(cluster)
		if err != nil {
			return nil, err
		}
		scrapers = append(scrapers, collector.New(client, p, ws, config.Scrape))
	}

	return scrapers, nil
}

func healthHandler(scrapers []*collector.Scraper) gin.HandlerFunc {
	return func(c *gin.Context) {
		healthy := true
		statuses := make([]collector.RoundStatus, 0, len(scrapers))

		for _, sc := range scrapers {
			st := sc.Status()
			statuses = append(statuses, st)
			if !st.Success && !st.LastRun.IsZero() {
				healthy = false
			}
		}

		code := http.StatusOK
		if !healthy {
			code = http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{"healthy": healthy, "clusters": statuses})
	}
}
