package collector

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/dremio-hub/dremio-monitor/dremio"
	"github.com/dremio-hub/dremio-monitor/pusher"
	"github.com/dremio-hub/dremio-monitor/stat"
	"github.com/dremio-hub/dremio-monitor/writer"

	"github.com/pkg/errors"
	"github.com/prometheus/prometheus/prompb"
	"github.com/toolkits/pkg/logger"
)

type Options struct {
	IntervalSeconds int
	JitterSeconds   int
}

func (o *Options) PreCheck() {
	if o.IntervalSeconds <= 0 {
		o.IntervalSeconds = 60
	}
}

// RoundStatus is the outcome of the last scrape round, served on the health
// endpoint.
type RoundStatus struct {
	Cluster    string    `json:"cluster"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	LastRun    time.Time `json:"last_run"`
	DurationMs int64     `json:"duration_ms"`
}

var errCoordinatorsDown = errors.New("all coordinators are down")

// Scraper runs the scrape loop for one Dremio cluster and pushes the
// resulting gauges.
type Scraper struct {
	client  *dremio.Client
	pusher  *pusher.Pusher
	writers *writer.Writers
	opts    Options

	// series collected during the current round, mirrored to remote write
	series []prompb.TimeSeries

	mu   sync.RWMutex
	last RoundStatus
}

func New(client *dremio.Client, p *pusher.Pusher, ws *writer.Writers, opts Options) *Scraper {
	opts.PreCheck()

	return &Scraper{
		client:  client,
		pusher:  p,
		writers: ws,
		opts:    opts,
	}
}

func (s *Scraper) Cluster() string {
	return s.client.Config().Name
}

func (s *Scraper) Status() RoundStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Start runs rounds at the configured interval until ctx is cancelled. An
// initial random jitter spreads the rounds of multiple clusters so the
// gateway is not hammered by all of them at once.
func (s *Scraper) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)

	go func() {
		defer wg.Done()

		if s.opts.JitterSeconds > 0 {
			jitter := time.Duration(rand.Int63n(int64(s.opts.JitterSeconds))) * time.Second
			select {
			case <-ctx.Done():
				return
			case <-time.After(jitter):
			}
		}

		interval := time.Duration(s.opts.IntervalSeconds) * time.Second
		for {
			if err := s.RunRound(ctx); err != nil {
				logger.Errorf("cluster %s: scrape round failed: %v", s.Cluster(), err)
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(interval):
			}
		}
	}()
}

// RunRound executes one full scrape round and records its outcome.
func (s *Scraper) RunRound(ctx context.Context) error {
	cluster := s.Cluster()

	start := time.Now()
	stat.CounterScrapeTotal.WithLabelValues(cluster).Inc()

	s.series = s.series[:0]

	err := s.runRound(ctx)

	elapsed := time.Since(start)
	stat.ScrapeDuration.WithLabelValues(cluster).Observe(elapsed.Seconds())

	up := float64(1)
	if err != nil {
		up = 0
		stat.CounterScrapeErrorTotal.WithLabelValues(cluster).Inc()
	}
	s.emit(MetricAPIUp, helpAPIUp, nil, map[string]string{"job": cluster}, up)

	if s.writers.Enabled() {
		s.writers.WriteSamples(s.series)
	}

	status := RoundStatus{
		Cluster:    cluster,
		Success:    err == nil,
		LastRun:    start,
		DurationMs: elapsed.Milliseconds(),
	}
	if err != nil {
		status.Error = err.Error()
	}

	s.mu.Lock()
	s.last = status
	s.mu.Unlock()

	return err
}

func (s *Scraper) runRound(ctx context.Context) error {
	states, active, up := s.checkCoordinators(ctx)

	for _, st := range states {
		s.pushCoordinator(st)
	}

	if !up {
		logger.Warningf("cluster %s: coordinators are down", s.Cluster())
		if err := s.resetStale(); err != nil {
			return err
		}
		return errCoordinatorsDown
	}

	if err := s.client.Login(ctx, active); err != nil {
		return err
	}

	// sections are independent, a failing one does not stop the others
	var firstErr error
	keep := func(err error) {
		if err != nil {
			logger.Warningf("cluster %s: %v", s.Cluster(), err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	keep(s.collectEngines(ctx))
	keep(s.collectSQL(ctx))
	keep(s.collectSources(ctx))

	return firstErr
}

// emit pushes one gauge and buffers it for the remote-write mirror.
func (s *Scraper) emit(name, help string, labels, grouping map[string]string, value float64) {
	job := s.Cluster()

	if err := s.pusher.PushGauge(job, name, help, labels, grouping, value); err != nil {
		logger.Warningf("cluster %s: %v", job, err)
	}

	if s.writers.Enabled() {
		merged := map[string]string{"job": job}
		for k, v := range grouping {
			merged[k] = v
		}
		for k, v := range labels {
			merged[k] = v
		}
		s.series = append(s.series, writer.TimeSeries(name, merged, value, time.Now().UnixMilli()))
	}
}
