package pusher

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordedPush struct {
	method string
	path   string
	body   []byte
}

type fakeGateway struct {
	mu     sync.Mutex
	pushes []recordedPush

	groupsBody string
}

func (g *fakeGateway) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, g.groupsBody)
	})

	mux.HandleFunc("/metrics/", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		g.mu.Lock()
		g.pushes = append(g.pushes, recordedPush{method: r.Method, path: r.URL.Path, body: body})
		g.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})

	return mux
}

func (g *fakeGateway) recorded() []recordedPush {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]recordedPush, len(g.pushes))
	copy(out, g.pushes)
	return out
}

func TestPushGauge(t *testing.T) {
	gw := &fakeGateway{}
	ts := httptest.NewServer(gw.handler())
	defer ts.Close()

	p, err := New(Options{URL: ts.URL})
	require.NoError(t, err)

	err = p.PushGauge("dremioCluster", "dremio_api_cluster_up", "Child cluster status, pushed via Gateway",
		map[string]string{"cluster": "engine1"},
		map[string]string{"job": "dremioCluster", "cluster": "engine1"},
		1)
	require.NoError(t, err)

	pushes := gw.recorded()
	require.Len(t, pushes, 1)

	require.Equal(t, http.MethodPost, pushes[0].method)
	require.True(t, strings.HasPrefix(pushes[0].path, "/metrics/job/dremioCluster"))
	require.Contains(t, pushes[0].path, "/cluster/engine1")

	// the encoded families ride in the body, name strings included
	require.Contains(t, string(pushes[0].body), "dremio_api_cluster_up")
	require.Contains(t, string(pushes[0].body), "dremio_push_time_seconds")
}

func TestPushGaugeInvalidGrouping(t *testing.T) {
	gw := &fakeGateway{}
	ts := httptest.NewServer(gw.handler())
	defer ts.Close()

	p, err := New(Options{URL: ts.URL})
	require.NoError(t, err)

	err = p.PushGauge("job1", "m", "h", nil, map[string]string{"bad-label!": "x"}, 1)
	require.Error(t, err)
	require.Empty(t, gw.recorded())
}

func TestOptionsPreCheck(t *testing.T) {
	o := Options{}
	require.Error(t, o.PreCheck())

	o = Options{URL: "http://gw:9091"}
	require.NoError(t, o.PreCheck())
	require.Equal(t, int64(60), o.Timeout)
}

const groupsBody = `{
  "status": "success",
  "data": [
    {
      "labels": {"job": "dremioCluster", "cluster": "engine1"},
      "last_push_successful": true,
      "push_time_seconds": {"type": "GAUGE", "metrics": [{"value": "1"}]},
      "dremio_push_time_seconds": {"type": "GAUGE", "metrics": [{"value": "1"}]},
      "dremio_api_cluster_up": {
        "type": "GAUGE",
        "help": "Child cluster status, pushed via Gateway",
        "metrics": [{"labels": {"cluster": "engine1"}, "value": "1"}]
      }
    },
    {
      "labels": {"job": "dremioCluster", "executor": "exec1"},
      "dremio_sql_executors_Value": {
        "type": "GAUGE",
        "metrics": [{"labels": {"executor": "exec1"}, "value": "3"}]
      }
    },
    {
      "labels": {"job": "otherCluster", "cluster": "foreign"},
      "dremio_api_cluster_up": {
        "type": "GAUGE",
        "metrics": [{"labels": {"cluster": "foreign"}, "value": "1"}]
      }
    }
  ]
}`

func TestGroups(t *testing.T) {
	gw := &fakeGateway{groupsBody: groupsBody}
	ts := httptest.NewServer(gw.handler())
	defer ts.Close()

	p, err := New(Options{URL: ts.URL})
	require.NoError(t, err)

	groups, err := p.Groups()
	require.NoError(t, err)
	require.Len(t, groups, 3)

	require.Equal(t, "engine1", groups[0].Labels["cluster"])
	require.Len(t, groups[0].Metrics, 1)
	require.Equal(t, []map[string]string{{"cluster": "engine1"}}, groups[0].Metrics["dremio_api_cluster_up"])
}

func TestSeriesLabels(t *testing.T) {
	gw := &fakeGateway{groupsBody: groupsBody}
	ts := httptest.NewServer(gw.handler())
	defer ts.Close()

	p, err := New(Options{URL: ts.URL})
	require.NoError(t, err)

	// only the matching job's groups count
	sets, err := p.SeriesLabels("dremioCluster", "dremio_api_cluster_up")
	require.NoError(t, err)
	require.Equal(t, []map[string]string{{"cluster": "engine1"}}, sets)

	sets, err = p.SeriesLabels("dremioCluster", "dremio_sql_executors_Value")
	require.NoError(t, err)
	require.Equal(t, []map[string]string{{"executor": "exec1"}}, sets)

	sets, err = p.SeriesLabels("dremioCluster", "dremio_api_source_status_Value")
	require.NoError(t, err)
	require.Empty(t, sets)
}
