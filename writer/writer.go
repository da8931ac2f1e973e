package writer

import (
	"bytes"
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/dremio-hub/dremio-monitor/pkg/tlsx"
	"github.com/dremio-hub/dremio-monitor/stat"

	"github.com/golang/protobuf/proto"
	"github.com/golang/snappy"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/api"
	"github.com/prometheus/prometheus/prompb"
	"github.com/toolkits/pkg/logger"
)

// Besides the Pushgateway the agent can mirror every sample straight to
// Prometheus remote-write endpoints. The volume here is a few dozen series
// per round, so samples are written synchronously, no queueing.

type Options struct {
	URL           string
	BasicAuthUser string
	BasicAuthPass string

	// Headers are flat key/value pairs: ["X-Scope-OrgID", "dremio", ...]
	Headers []string

	Timeout             int64 // seconds
	MaxIdleConnsPerHost int

	tlsx.ClientConfig
}

type GlobalOpt struct {
	RetryCount    int
	RetryInterval int64 // seconds
}

func (o *GlobalOpt) PreCheck() {
	if o.RetryCount <= 0 {
		o.RetryCount = 3
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = 2
	}
}

type WriterType struct {
	Opts          Options
	Client        api.Client
	RetryCount    int
	RetryInterval int64
}

func (w WriterType) Write(items []prompb.TimeSeries) {
	if len(items) == 0 {
		return
	}

	start := time.Now()
	defer func() {
		stat.ForwardDuration.WithLabelValues(w.Opts.URL).Observe(time.Since(start).Seconds())
	}()

	req := &prompb.WriteRequest{Timeseries: items}
	data, err := proto.Marshal(req)
	if err != nil {
		logger.Warningf("marshal prom data to proto got error: %v", err)
		return
	}

	for i := 0; i < w.RetryCount; i++ {
		err := w.post(snappy.Encode(nil, data))
		if err == nil {
			break
		}

		logger.Warningf("post to %s got error: %v in %d times", w.Opts.URL, err, i)

		if i == 0 {
			logger.Warning("example timeseries:", items[0].String())
		}

		time.Sleep(time.Duration(w.RetryInterval) * time.Second)
	}
}

func (w WriterType) post(req []byte) error {
	httpReq, err := http.NewRequest("POST", w.Opts.URL, bytes.NewReader(req))
	if err != nil {
		return err
	}

	httpReq.Header.Add("Content-Encoding", "snappy")
	httpReq.Header.Set("Content-Type", "application/x-protobuf")
	httpReq.Header.Set("User-Agent", "dremio-monitor")
	httpReq.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")

	if w.Opts.BasicAuthUser != "" {
		httpReq.SetBasicAuth(w.Opts.BasicAuthUser, w.Opts.BasicAuthPass)
	}

	headerCount := len(w.Opts.Headers)
	if headerCount > 0 && headerCount%2 == 0 {
		for i := 0; i < headerCount; i += 2 {
			httpReq.Header.Add(w.Opts.Headers[i], w.Opts.Headers[i+1])
			if w.Opts.Headers[i] == "Host" {
				httpReq.Host = w.Opts.Headers[i+1]
			}
		}
	}

	resp, body, err := w.Client.Do(context.Background(), httpReq)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		return errors.Errorf("remote write %s status code: %v, response body: %s", w.Opts.URL, resp.StatusCode, string(body))
	}

	return nil
}

type Writers struct {
	backends []WriterType
}

func NewWriters(opt GlobalOpt, opts []Options) (*Writers, error) {
	opt.PreCheck()

	ws := &Writers{}
	for i := range opts {
		if opts[i].Timeout <= 0 {
			opts[i].Timeout = 10
		}

		tlsConfig, err := opts[i].TLSConfig()
		if err != nil {
			return nil, err
		}

		cli, err := api.NewClient(api.Config{
			Address: opts[i].URL,
			RoundTripper: &http.Transport{
				TLSClientConfig:       tlsConfig,
				MaxIdleConnsPerHost:   opts[i].MaxIdleConnsPerHost,
				ResponseHeaderTimeout: time.Duration(opts[i].Timeout) * time.Second,
			},
		})
		if err != nil {
			return nil, err
		}

		ws.backends = append(ws.backends, WriterType{
			Opts:          opts[i],
			Client:        cli,
			RetryCount:    opt.RetryCount,
			RetryInterval: opt.RetryInterval,
		})
	}

	return ws, nil
}

func (ws *Writers) Enabled() bool {
	return ws != nil && len(ws.backends) > 0
}

func (ws *Writers) WriteSamples(items []prompb.TimeSeries) {
	if !ws.Enabled() {
		return
	}

	for i := range ws.backends {
		ws.backends[i].Write(items)
	}
}

// TimeSeries builds one remote-write sample. Labels go out sorted, the
// receivers require it.
func TimeSeries(name string, labels map[string]string, value float64, tsMillis int64) prompb.TimeSeries {
	lbs := make([]prompb.Label, 0, len(labels)+1)
	lbs = append(lbs, prompb.Label{Name: "__name__", Value: name})
	for k, v := range labels {
		lbs = append(lbs, prompb.Label{Name: k, Value: v})
	}

	sort.Slice(lbs, func(i, j int) bool { return lbs[i].Name < lbs[j].Name })

	return prompb.TimeSeries{
		Labels:  lbs,
		Samples: []prompb.Sample{{Value: value, Timestamp: tsMillis}},
	}
}
