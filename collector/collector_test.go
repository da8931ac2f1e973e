package collector

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/dremio-hub/dremio-monitor/dremio"
	"github.com/dremio-hub/dremio-monitor/pusher"

	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu     sync.Mutex
	paths  []string
	bodies []string

	groupsBody string
}

func (g *fakeGateway) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/metrics", func(w http.ResponseWriter, r *http.Request) {
		body := g.groupsBody
		if body == "" {
			body = `{"status":"success","data":[]}`
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	})

	mux.HandleFunc("/metrics/", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		g.mu.Lock()
		g.paths = append(g.paths, r.URL.Path)
		g.bodies = append(g.bodies, string(body))
		g.mu.Unlock()
	})

	return mux
}

func (g *fakeGateway) pushedFamily(family string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, b := range g.bodies {
		if strings.Contains(b, family) {
			return true
		}
	}
	return false
}

func (g *fakeGateway) pushedPath(fragment string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, p := range g.paths {
		if strings.Contains(p, fragment) {
			return true
		}
	}
	return false
}

func newFakeDremio() *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/apiv2/server_status", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`"OK"`))
	})
	mux.HandleFunc("/apiv2/login", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token":"tok","version":"24.1.0"}`))
	})
	mux.HandleFunc("/apiv2/provision/clusters", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"clusterList":[{"name":"engine1","currentState":"RUNNING","containers":{
			"pendingCount":0,"provisioningCount":0,"decommissioningCount":0,
			"runningList":[{"containerPropertyList":[{"key":"host","value":"exec1"},{"key":"memoryMB","value":"8192"}]}]}}]}`))
	})
	mux.HandleFunc("/api/v3/catalog", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":"src-1","path":["hive"],"containerType":"SOURCE"}]}`))
	})
	mux.HandleFunc("/api/v3/catalog/src-1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"src-1"}`))
	})
	mux.HandleFunc("/api/v3/sql", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"job-1"}`))
	})
	mux.HandleFunc("/api/v3/job/job-1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jobState":"COMPLETED"}`))
	})
	mux.HandleFunc("/api/v3/job/job-1/results", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rows":[{"hostname":"exec1","cnt":1,"direct_max":100,"direct_current":50,"heap_max":200,"heap_current":80}]}`))
	})

	return httptest.NewServer(mux)
}

func hostPort(t *testing.T, rawURL string) (string, int) {
	t.Helper()

	u, err := url.Parse(rawURL)
	require.NoError(t, err)

	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)

	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func newScraper(t *testing.T, cfg dremio.ClusterConfig, gw *fakeGateway) (*Scraper, *httptest.Server) {
	t.Helper()

	gwServer := httptest.NewServer(gw.handler())

	p, err := pusher.New(pusher.Options{URL: gwServer.URL})
	require.NoError(t, err)

	client, err := dremio.NewClient(cfg)
	require.NoError(t, err)

	return New(client, p, nil, Options{IntervalSeconds: 60}), gwServer
}

func TestRunRound(t *testing.T) {
	ds := newFakeDremio()
	defer ds.Close()

	host, port := hostPort(t, ds.URL)
	cfg := dremio.ClusterConfig{
		Name:              "dremioCluster",
		MasterCoordinator: host,
		Port:              port,
		Username:          "u",
		Password:          "p",
		SQLPollInterval:   10,
	}
	require.NoError(t, cfg.PreCheck())

	gw := &fakeGateway{}
	sc, gwServer := newScraper(t, cfg, gw)
	defer gwServer.Close()

	require.NoError(t, sc.RunRound(context.Background()))

	for _, family := range []string{
		MetricAPIUp,
		MetricCoordinatorUp,
		MetricClusterUp,
		MetricTotalExecutors,
		MetricCurrentExecutors,
		MetricAllocatedMemory,
		MetricUsedMemory,
		MetricSQLExecutors,
		MetricThreadsWaiting,
		MetricDirectMax,
		MetricDirectCurrent,
		MetricHeapMax,
		MetricHeapCurrent,
		MetricSourceStatus,
		MetricVDSCount,
	} {
		require.True(t, gw.pushedFamily(family), "family %s was not pushed", family)
	}

	require.True(t, gw.pushedPath("/job/dremioCluster"))
	require.True(t, gw.pushedPath("/cluster/engine1"))
	require.True(t, gw.pushedPath("/executor/exec1"))
	require.True(t, gw.pushedPath("/source/hive"))

	st := sc.Status()
	require.True(t, st.Success)
	require.Empty(t, st.Error)
	require.False(t, st.LastRun.IsZero())
}

const downGroupsBody = `{
  "status": "success",
  "data": [
    {
      "labels": {"job": "dremioCluster", "cluster": "engine1"},
      "dremio_api_cluster_up": {"type": "GAUGE", "metrics": [{"labels": {"cluster": "engine1"}, "value": "1"}]}
    },
    {
      "labels": {"job": "dremioCluster", "executor": "exec1"},
      "dremio_sql_executors_Value": {"type": "GAUGE", "metrics": [{"labels": {"executor": "exec1"}, "value": "3"}]}
    },
    {
      "labels": {"job": "dremioCluster", "source": "hive"},
      "dremio_api_source_status_Value": {"type": "GAUGE", "metrics": [{"labels": {"source": "hive"}, "value": "200"}]}
    },
    {
      "labels": {"job": "dremioCluster"},
      "dremio_sql_vds_count_Value": {"type": "GAUGE", "metrics": [{"value": "42"}]}
    }
  ]
}`

func TestRunRoundCoordinatorsDown(t *testing.T) {
	ds := newFakeDremio()
	host, port := hostPort(t, ds.URL)
	ds.Close() // nobody answers anymore

	cfg := dremio.ClusterConfig{
		Name:              "dremioCluster",
		MasterCoordinator: host,
		Port:              port,
		Username:          "u",
		Password:          "p",
	}
	require.NoError(t, cfg.PreCheck())

	gw := &fakeGateway{groupsBody: downGroupsBody}
	sc, gwServer := newScraper(t, cfg, gw)
	defer gwServer.Close()

	err := sc.RunRound(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "coordinators are down")

	// coordinator status and the zeroed families go out even when down
	require.True(t, gw.pushedFamily(MetricCoordinatorUp))
	require.True(t, gw.pushedFamily(MetricClusterUp))
	require.True(t, gw.pushedFamily(MetricSQLExecutors))
	require.True(t, gw.pushedFamily(MetricThreadsWaiting))
	require.True(t, gw.pushedFamily(MetricSourceStatus))
	require.True(t, gw.pushedFamily(MetricVDSCount))
	require.True(t, gw.pushedFamily(MetricAPIUp))

	require.True(t, gw.pushedPath("/cluster/engine1"))
	require.True(t, gw.pushedPath("/executor/exec1"))
	require.True(t, gw.pushedPath("/source/hive"))

	st := sc.Status()
	require.False(t, st.Success)
	require.Contains(t, st.Error, "coordinators are down")
}

func TestCheckCoordinatorsFailover(t *testing.T) {
	ds := newFakeDremio()
	defer ds.Close()

	_, port := hostPort(t, ds.URL)

	// master points at a loopback address nothing listens on, standby at
	// the live server
	cfg := dremio.ClusterConfig{
		Name:               "dremioCluster",
		MasterCoordinator:  "127.0.0.2",
		StandbyCoordinator: "127.0.0.1",
		Port:               port,
		Username:           "u",
		Password:           "p",
	}
	require.NoError(t, cfg.PreCheck())

	gw := &fakeGateway{}
	sc, gwServer := newScraper(t, cfg, gw)
	defer gwServer.Close()

	states, active, up := sc.checkCoordinators(context.Background())
	require.True(t, up)
	require.Equal(t, "127.0.0.1", active)

	require.Len(t, states, 2)
	require.Equal(t, RoleMaster, states[0].role)
	require.Equal(t, 0, states[0].status) // no JMX port configured, so fully down
	require.Equal(t, RoleStandby, states[1].role)
	require.Equal(t, 1, states[1].status)
}

func TestCheckCoordinatorsJMXOnly(t *testing.T) {
	jmx := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer jmx.Close()

	_, jmxPort := hostPort(t, jmx.URL)

	// grab a port nothing listens on for the API side
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	apiPort := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	cfg := dremio.ClusterConfig{
		Name:               "dremioCluster",
		MasterCoordinator:  "127.0.0.1",
		StandbyCoordinator: "127.0.0.1",
		Port:               apiPort,
		JMXPort:            jmxPort,
		Username:           "u",
		Password:           "p",
	}
	require.NoError(t, cfg.PreCheck())

	gw := &fakeGateway{}
	sc, gwServer := newScraper(t, cfg, gw)
	defer gwServer.Close()

	// API ports are dead on both coordinators, only the JMX port answers
	states, _, up := sc.checkCoordinators(context.Background())
	require.False(t, up)

	require.Len(t, states, 2)
	require.Equal(t, RoleMaster, states[0].role)
	require.Equal(t, 1, states[0].status)
	require.Equal(t, RoleStandby, states[1].role)
	require.Equal(t, 2, states[1].status)
}

func TestOptionsPreCheck(t *testing.T) {
	o := Options{}
	o.PreCheck()
	require.Equal(t, 60, o.IntervalSeconds)
}
