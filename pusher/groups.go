package pusher

import (
	"io"
	"net/http"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

const metricsAPIPath = "/api/v1/metrics"

// Group is one grouping-key group the gateway currently holds: its grouping
// labels plus, per metric family, the labelsets of the contained series.
type Group struct {
	Labels  map[string]string
	Metrics map[string][]map[string]string
}

// internal families the gateway adds to every group
func internalFamily(name string) bool {
	switch name {
	case "labels", "last_push_successful",
		"push_time_seconds", "push_failure_time_seconds",
		"dremio_push_time_seconds":
		return true
	}
	return false
}

// Groups lists all grouping-key groups via the gateway query API.
func (p *Pusher) Groups() ([]Group, error) {
	req, err := http.NewRequest(http.MethodGet, p.opts.URL+metricsAPIPath, nil)
	if err != nil {
		return nil, err
	}

	if p.opts.BasicAuthUser != "" {
		req.SetBasicAuth(p.opts.BasicAuthUser, p.opts.BasicAuthPass)
	}

	resp, err := p.cli.Do(req)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to query pushgateway metrics api")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("pushgateway metrics api status code %d, body: %s", resp.StatusCode, string(body))
	}

	var groups []Group
	gjson.GetBytes(body, "data").ForEach(func(_, item gjson.Result) bool {
		g := Group{
			Labels:  map[string]string{},
			Metrics: map[string][]map[string]string{},
		}

		item.Get("labels").ForEach(func(k, v gjson.Result) bool {
			g.Labels[k.String()] = v.String()
			return true
		})

		item.ForEach(func(family, detail gjson.Result) bool {
			name := family.String()
			if internalFamily(name) {
				return true
			}

			detail.Get("metrics").ForEach(func(_, m gjson.Result) bool {
				labels := map[string]string{}
				m.Get("labels").ForEach(func(k, v gjson.Result) bool {
					labels[k.String()] = v.String()
					return true
				})
				g.Metrics[name] = append(g.Metrics[name], labels)
				return true
			})
			return true
		})

		groups = append(groups, g)
		return true
	})

	return groups, nil
}

// SeriesLabels returns the labelsets the gateway holds for one metric
// family, restricted to groups pushed under job. Used to zero out series of
// a cluster whose coordinators all went away.
func (p *Pusher) SeriesLabels(job, family string) ([]map[string]string, error) {
	groups, err := p.Groups()
	if err != nil {
		return nil, err
	}

	var out []map[string]string
	for _, g := range groups {
		if g.Labels["job"] != job {
			continue
		}
		out = append(out, g.Metrics[family]...)
	}

	return out, nil
}
