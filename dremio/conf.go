package dremio

import (
	"fmt"

	"github.com/pkg/errors"
)

// ClusterConfig describes one monitored Dremio cluster. One agent process
// can watch several clusters, each with its own section in the config file.
type ClusterConfig struct {
	Name               string
	MasterCoordinator  string
	StandbyCoordinator string
	Port               int
	JMXPort            int
	Username           string
	Password           string

	SSLEnabled      bool
	SSLCertLocation string

	// APITimeout bounds every REST call, in seconds.
	APITimeout int64
	// SQLPollInterval is the job state poll interval in milliseconds.
	SQLPollInterval int64
	// SQLTimeout bounds a whole SQL roundtrip (submit, poll, fetch), in seconds.
	SQLTimeout int64
}

func (c *ClusterConfig) PreCheck() error {
	if c.Name == "" {
		return errors.New("cluster name is blank")
	}

	if c.MasterCoordinator == "" {
		return errors.Errorf("cluster %s: MasterCoordinator is blank", c.Name)
	}

	// SSL enabled clusters need the certificate bundle file too
	if c.SSLEnabled && c.SSLCertLocation == "" {
		return errors.Errorf("cluster %s: SSL configuration missing, please set SSLCertLocation", c.Name)
	}

	if c.Port <= 0 {
		c.Port = 9047
	}

	if c.APITimeout <= 0 {
		c.APITimeout = 60
	}

	if c.SQLPollInterval <= 0 {
		c.SQLPollInterval = 500
	}

	if c.SQLTimeout <= 0 {
		c.SQLTimeout = 60
	}

	return nil
}

func (c *ClusterConfig) StandbyEnabled() bool {
	return c.StandbyCoordinator != ""
}

func (c *ClusterConfig) Protocol() string {
	if c.SSLEnabled {
		return "https://"
	}
	return "http://"
}

// BaseURL builds the REST API base for the given coordinator host.
func (c *ClusterConfig) BaseURL(host string) string {
	return fmt.Sprintf("%s%s:%d", c.Protocol(), host, c.Port)
}

// JMXURL builds the management port probe URL. The JMX HTTP port never
// carries TLS, regardless of the API protocol.
func (c *ClusterConfig) JMXURL(host string) string {
	return fmt.Sprintf("http://%s:%d", host, c.JMXPort)
}
