package dremio

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// SQL access goes through the REST API: submit the statement, poll the job
// until it settles, then fetch the result rows. This replaces the JDBC path
// older deployments used, no driver jar needed.

const (
	sqlPath = "/api/v3/sql"
	jobPath = "/api/v3/job"

	jobStateCompleted = "COMPLETED"
	jobStateFailed    = "FAILED"
	jobStateCanceled  = "CANCELED"

	// page size for result fetches
	resultLimit = 500
)

const (
	queryExecutorCounts = `select hostname, count(*) as cnt from sys.nodes group by hostname`
	queryWaitingThreads = `select hostname, count(*) as cnt from sys.threads where threadState in ('WAITING') group by hostname`
	queryMemoryStats    = `select hostname, direct_max, direct_current, heap_max, heap_current from sys.memory`
	queryViewCount      = `select count(*) as cnt from information_schema."TABLES" where table_type = 'VIEW' and table_schema not like '@%'`
)

// Query runs one SQL statement and returns the rows as column name keyed maps.
func (c *Client) Query(ctx context.Context, sql string) ([]map[string]interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.SQLTimeout)*time.Second)
	defer cancel()

	body, err := c.post(ctx, sqlPath, map[string]string{"sql": sql})
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to submit query: %s", sql)
	}

	var submitted struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &submitted); err != nil {
		return nil, errors.WithMessage(err, "failed to decode sql submit response")
	}
	if submitted.ID == "" {
		return nil, errors.New("sql submit response carries no job id")
	}

	if err := c.waitJob(ctx, submitted.ID); err != nil {
		return nil, errors.WithMessagef(err, "query did not complete: %s", sql)
	}

	return c.jobResults(ctx, submitted.ID)
}

func (c *Client) waitJob(ctx context.Context, id string) error {
	ticker := time.NewTicker(time.Duration(c.cfg.SQLPollInterval) * time.Millisecond)
	defer ticker.Stop()

	for {
		body, err := c.get(ctx, jobPath+"/"+id)
		if err != nil {
			return err
		}

		var status struct {
			JobState     string `json:"jobState"`
			ErrorMessage string `json:"errorMessage"`
		}
		if err := json.Unmarshal(body, &status); err != nil {
			return errors.WithMessage(err, "failed to decode job status")
		}

		switch status.JobState {
		case jobStateCompleted:
			return nil
		case jobStateFailed, jobStateCanceled:
			return errors.Errorf("job %s %s: %s", id, status.JobState, status.ErrorMessage)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) jobResults(ctx context.Context, id string) ([]map[string]interface{}, error) {
	var rows []map[string]interface{}

	for offset := 0; ; offset += resultLimit {
		body, err := c.get(ctx, fmt.Sprintf("%s/%s/results?offset=%d&limit=%d", jobPath, id, offset, resultLimit))
		if err != nil {
			return nil, err
		}

		var out struct {
			Rows []map[string]interface{} `json:"rows"`
		}
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, errors.WithMessage(err, "failed to decode job results")
		}

		rows = append(rows, out.Rows...)

		// a short page is the last one
		if len(out.Rows) < resultLimit {
			return rows, nil
		}
	}
}

// ExecutorCounts returns the node count per hostname from sys.nodes.
func (c *Client) ExecutorCounts(ctx context.Context) ([]HostCount, error) {
	return c.hostCounts(ctx, queryExecutorCounts)
}

// WaitingThreads returns the WAITING thread count per hostname.
func (c *Client) WaitingThreads(ctx context.Context) ([]HostCount, error) {
	return c.hostCounts(ctx, queryWaitingThreads)
}

func (c *Client) hostCounts(ctx context.Context, sql string) ([]HostCount, error) {
	rows, err := c.Query(ctx, sql)
	if err != nil {
		return nil, err
	}

	out := make([]HostCount, 0, len(rows))
	for _, row := range rows {
		out = append(out, HostCount{
			Hostname: asString(row["hostname"]),
			Count:    asFloat(row["cnt"]),
		})
	}
	return out, nil
}

// MemoryStats returns the direct and heap memory figures per node.
func (c *Client) MemoryStats(ctx context.Context) ([]MemoryStat, error) {
	rows, err := c.Query(ctx, queryMemoryStats)
	if err != nil {
		return nil, err
	}

	out := make([]MemoryStat, 0, len(rows))
	for _, row := range rows {
		out = append(out, MemoryStat{
			Hostname:      asString(row["hostname"]),
			DirectMax:     asFloat(row["direct_max"]),
			DirectCurrent: asFloat(row["direct_current"]),
			HeapMax:       asFloat(row["heap_max"]),
			HeapCurrent:   asFloat(row["heap_current"]),
		})
	}
	return out, nil
}

// ViewCount counts the virtual datasets outside home spaces.
func (c *Client) ViewCount(ctx context.Context) (float64, error) {
	rows, err := c.Query(ctx, queryViewCount)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, errors.New("view count query returned no rows")
	}
	return asFloat(rows[0]["cnt"]), nil
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

// asFloat handles the number representations the results endpoint produces:
// plain JSON numbers, and strings for bigint columns.
func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
