package pusher

import (
	"net/http"
	"sort"
	"time"

	"github.com/dremio-hub/dremio-monitor/pkg/tlsx"
	"github.com/dremio-hub/dremio-monitor/stat"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/prometheus/common/model"
)

type Options struct {
	URL           string
	BasicAuthUser string
	BasicAuthPass string

	// Timeout per push, in seconds
	Timeout int64

	tlsx.ClientConfig
}

func (o *Options) PreCheck() error {
	if o.URL == "" {
		return errors.New("Pushgw.URL is blank")
	}

	if o.Timeout <= 0 {
		o.Timeout = 60
	}

	return nil
}

// Pusher ships gauges to a Prometheus Pushgateway. Every sample goes out as
// its own push-add under a grouping key, so series pushed for different
// engines and executors never overwrite each other.
type Pusher struct {
	opts Options
	cli  *http.Client
}

func New(opts Options) (*Pusher, error) {
	if err := opts.PreCheck(); err != nil {
		return nil, err
	}

	tlsConfig, err := opts.TLSConfig()
	if err != nil {
		return nil, err
	}

	return &Pusher{
		opts: opts,
		cli: &http.Client{
			Timeout:   time.Duration(opts.Timeout) * time.Second,
			Transport: &http.Transport{TLSClientConfig: tlsConfig},
		},
	}, nil
}

// PushGauge push-adds one gauge under job with the given grouping key. A
// dremio_push_time_seconds gauge rides along in the same group so staleness
// of the group is visible on the gateway.
func (p *Pusher) PushGauge(job, name, help string, labels map[string]string, grouping map[string]string, value float64) error {
	registry := prometheus.NewRegistry()

	if labels == nil {
		labels = map[string]string{}
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	}, keys)
	gauge.With(prometheus.Labels(labels)).Set(value)
	registry.MustRegister(gauge)

	pushTime := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dremio_push_time_seconds",
		Help: "Unix time of the last push for this group.",
	})
	pushTime.SetToCurrentTime()
	registry.MustRegister(pushTime)

	pp := push.New(p.opts.URL, job).Gatherer(registry).Client(p.cli)

	for k, v := range grouping {
		// job is already carried by the pusher itself
		if k == "job" {
			continue
		}
		if !model.LabelName(k).IsValid() {
			return errors.Errorf("invalid grouping label name: %s", k)
		}
		pp = pp.Grouping(k, v)
	}

	if p.opts.BasicAuthUser != "" {
		pp = pp.BasicAuth(p.opts.BasicAuthUser, p.opts.BasicAuthPass)
	}

	stat.CounterPushTotal.WithLabelValues(job).Inc()

	if err := pp.Add(); err != nil {
		stat.CounterPushErrorTotal.WithLabelValues(job).Inc()
		return errors.WithMessagef(err, "failed to push %s to %s", name, p.opts.URL)
	}

	return nil
}
