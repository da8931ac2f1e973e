package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644))
	return dir
}

const validConfig = `
[Global]
RunMode = "debug"

[Log]
Output = "stderr"

[HTTP]
Port = 18090

[Scrape]
IntervalSeconds = 30

[Pushgw]
URL = "http://gw:9091"

[[Clusters]]
Name = "dremioCluster"
MasterCoordinator = "dremio-master"
StandbyCoordinator = "dremio-standby"
JMXPort = 9010
Username = "dremio"
Password = "secret"
`

func TestInitConfig(t *testing.T) {
	dir := writeConfig(t, validConfig)

	config, err := InitConfig(dir)
	require.NoError(t, err)

	require.Equal(t, "debug", config.Global.RunMode)
	require.Equal(t, 18090, config.HTTP.Port)
	require.Equal(t, 3, config.HTTP.ShutdownTimeout)
	require.Equal(t, 30, config.Scrape.IntervalSeconds)
	require.Equal(t, "http://gw:9091", config.Pushgw.URL)

	require.Len(t, config.Clusters, 1)
	cluster := config.Clusters[0]
	require.Equal(t, "dremioCluster", cluster.Name)
	require.True(t, cluster.StandbyEnabled())
	// PreCheck ran and filled the defaults
	require.Equal(t, 9047, cluster.Port)
	require.Equal(t, int64(60), cluster.APITimeout)
}

func TestInitConfigDirMissing(t *testing.T) {
	_, err := InitConfig("/no/such/dir")
	require.Error(t, err)
}

func TestInitConfigNoClusters(t *testing.T) {
	dir := writeConfig(t, `
[Pushgw]
URL = "http://gw:9091"
`)

	_, err := InitConfig(dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Clusters")
}

func TestInitConfigDuplicateCluster(t *testing.T) {
	dir := writeConfig(t, `
[Pushgw]
URL = "http://gw:9091"

[[Clusters]]
Name = "c1"
MasterCoordinator = "m1"

[[Clusters]]
Name = "c1"
MasterCoordinator = "m2"
`)

	_, err := InitConfig(dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate cluster name")
}

func TestInitConfigSSLNeedsCert(t *testing.T) {
	dir := writeConfig(t, `
[Pushgw]
URL = "http://gw:9091"

[[Clusters]]
Name = "c1"
MasterCoordinator = "m1"
SSLEnabled = true
`)

	_, err := InitConfig(dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "SSLCertLocation")
}
