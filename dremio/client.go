package dremio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dremio-hub/dremio-monitor/pkg/tlsx"
	"github.com/dremio-hub/dremio-monitor/pkg/version"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"github.com/toolkits/pkg/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	serverStatusPath = "/apiv2/server_status"
	loginPath        = "/apiv2/login"
	clustersPath     = "/apiv2/provision/clusters"
	catalogPath      = "/api/v3/catalog"

	// clusters older than this get a startup warning, some sys tables
	// queried here did not exist before
	minSupportedVersion = "4.0.0"
)

// Client talks to one Dremio cluster. It probes coordinators, logs in to
// whichever one is active and serves the REST calls the collector needs.
// Not safe for concurrent use; every cluster gets its own scrape goroutine.
type Client struct {
	cfg ClusterConfig

	cli    *http.Client
	jmxCli *http.Client

	// active is the coordinator host Login succeeded against
	active string
	token  string
}

func NewClient(cfg ClusterConfig) (*Client, error) {
	tc := tlsx.ClientConfig{
		UseTLS:     cfg.SSLEnabled,
		CaCertFile: cfg.SSLCertLocation,
	}

	tlsConfig, err := tc.TLSConfig()
	if err != nil {
		return nil, errors.WithMessagef(err, "cluster %s: bad ssl config", cfg.Name)
	}

	timeout := time.Duration(cfg.APITimeout) * time.Second

	return &Client{
		cfg: cfg,
		cli: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{TLSClientConfig: tlsConfig},
		},
		jmxCli: &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) Config() ClusterConfig {
	return c.cfg
}

// ActiveCoordinator returns the host the client logged in against, or the
// master if no login happened yet.
func (c *Client) ActiveCoordinator() string {
	if c.active == "" {
		return c.cfg.MasterCoordinator
	}
	return c.active
}

// ServerStatus checks whether the coordinator answers on its API port. Any
// HTTP response counts as alive, only transport failures mean down.
func (c *Client) ServerStatus(ctx context.Context, host string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL(host)+serverStatusPath, nil)
	if err != nil {
		return err
	}

	resp, err := c.cli.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// ProbeJMX checks the management HTTP port, the fallback liveness signal
// when the API port stopped answering.
func (c *Client) ProbeJMX(ctx context.Context, host string) error {
	if c.cfg.JMXPort <= 0 {
		return errors.Errorf("cluster %s: JMXPort not configured", c.cfg.Name)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.JMXURL(host), nil)
	if err != nil {
		return err
	}

	resp, err := c.jmxCli.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Login authenticates against host and pins it as the active coordinator.
// The returned token is carried as "_dremio<token>" on subsequent calls.
func (c *Client) Login(ctx context.Context, host string) error {
	payload := map[string]string{
		"userName": c.cfg.Username,
		"password": c.cfg.Password,
	}

	bs, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL(host)+loginPath, bytes.NewReader(bs))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.cli.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("cluster %s: authentication error, status code %d", c.cfg.Name, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var lr loginResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return errors.WithMessage(err, "failed to decode login response")
	}

	c.token = "_dremio" + lr.Token
	c.active = host

	if lr.Version != "" {
		if cmp, err := version.CompareVersion(lr.Version, minSupportedVersion); err == nil && cmp < 0 {
			logger.Warningf("cluster %s: dremio version %s is older than %s, some metrics may be missing",
				c.cfg.Name, lr.Version, minSupportedVersion)
		}
	}

	return nil
}

// Engines lists the provisioned executor pools of the active coordinator.
func (c *Client) Engines(ctx context.Context) ([]Engine, error) {
	body, err := c.get(ctx, clustersPath)
	if err != nil {
		return nil, err
	}

	var out struct {
		ClusterList []Engine `json:"clusterList"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, errors.WithMessage(err, "failed to decode cluster list")
	}

	return out.ClusterList, nil
}

// Catalog lists the top level catalog entries.
func (c *Client) Catalog(ctx context.Context) ([]CatalogEntry, error) {
	body, err := c.get(ctx, catalogPath)
	if err != nil {
		return nil, err
	}

	var out struct {
		Data []CatalogEntry `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, errors.WithMessage(err, "failed to decode catalog")
	}

	return out.Data, nil
}

// CatalogEntryStatus fetches one catalog entry and returns the HTTP status
// code, which is the value of the source status metric. 200 means the
// source is healthy, anything else is the failure itself.
func (c *Client) CatalogEntryStatus(ctx context.Context, id string) (int, error) {
	req, err := c.newRequest(ctx, http.MethodGet, catalogPath+"/"+id, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.cli.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if c.active == "" {
		return nil, errors.Errorf("cluster %s: not logged in", c.cfg.Name)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL(c.active)+path, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.token)
	return req, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	bs, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(bs))
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.cli.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp.StatusCode, body)
	}

	return body, nil
}

// apiError surfaces the errorMessage/moreInfo fields Dremio puts in error
// bodies, falling back to the raw content.
func apiError(status int, body []byte) error {
	msg := fmt.Sprintf("api error %d", status)

	em := gjson.GetBytes(body, "errorMessage")
	mi := gjson.GetBytes(body, "moreInfo")

	if em.Exists() {
		msg += " errorMessage: " + em.String()
	}
	if mi.Exists() {
		msg += " moreInfo: " + mi.String()
	}
	if !em.Exists() && !mi.Exists() && len(body) > 0 {
		msg += " content: " + string(body)
	}

	return errors.New(msg)
}
