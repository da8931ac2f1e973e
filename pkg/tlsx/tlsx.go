package tlsx

import (
	"crypto/tls"
	"crypto/x509"
	"os"

	"github.com/pkg/errors"
)

type ClientConfig struct {
	UseTLS             bool
	InsecureSkipVerify bool
	CaCertFile         string
	CertFile           string
	KeyFile            string
	ServerName         string
}

// TLSConfig materializes the client tls.Config, loading the CA bundle and
// the optional client cert pair from disk.
func (c *ClientConfig) TLSConfig() (*tls.Config, error) {
	if !c.UseTLS {
		return nil, nil
	}

	tlsConfig := &tls.Config{
		InsecureSkipVerify: c.InsecureSkipVerify,
		ServerName:         c.ServerName,
		MinVersion:         tls.VersionTLS12,
	}

	if c.CaCertFile != "" {
		pem, err := os.ReadFile(c.CaCertFile)
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to read ca cert file %s", c.CaCertFile)
		}

		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.Errorf("failed to parse ca cert file %s", c.CaCertFile)
		}
		tlsConfig.RootCAs = pool
	}

	if c.CertFile != "" && c.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, errors.WithMessage(err, "failed to load client cert pair")
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}
