package collector

import (
	"context"

	"github.com/dremio-hub/dremio-monitor/dremio"

	"github.com/pkg/errors"
	"github.com/toolkits/pkg/logger"
)

// collectEngines walks the provisioned executor pools and pushes per-engine
// capacity gauges.
func (s *Scraper) collectEngines(ctx context.Context) error {
	engines, err := s.client.Engines(ctx)
	if err != nil {
		return errors.WithMessage(err, "failed to list engines")
	}

	job := s.Cluster()

	for i := range engines {
		engine := &engines[i]
		grouping := map[string]string{"job": job, "cluster": engine.Name}
		lbs := map[string]string{"cluster": engine.Name}

		if !engine.Running() {
			logger.Warningf("cluster %s: engine %s is %s", job, engine.Name, engine.CurrentState)

			s.emit(MetricClusterUp, helpClusterUp, lbs, grouping, 0)
			s.emit(MetricTotalExecutors, helpTotalExecutors, lbs, grouping, 0)
			s.emit(MetricCurrentExecutors, helpCurrentExecutors, lbs, grouping, 0)
			s.emit(MetricAllocatedMemory, helpAllocatedMemory, lbs, grouping, 0)
			s.emit(MetricUsedMemory, helpUsedMemory, lbs, grouping, 0)
			continue
		}

		desired := engine.DesiredExecutors()
		running := engine.RunningExecutors()
		usedMB, perExecutorMB := engine.Memory()
		allocatedMB := desired * perExecutorMB

		logger.Debugf("cluster %s: engine %s desired=%d running=%d allocatedMB=%d usedMB=%d",
			job, engine.Name, desired, running, allocatedMB, usedMB)

		s.emit(MetricClusterUp, helpClusterUp, lbs, grouping, 1)
		s.emit(MetricTotalExecutors, helpTotalExecutors, lbs, grouping, float64(desired))
		s.emit(MetricCurrentExecutors, helpCurrentExecutors, lbs, grouping, float64(running))
		// memory families are reported in GB
		s.emit(MetricAllocatedMemory, helpAllocatedMemory, lbs, grouping, float64(allocatedMB)/1024)
		s.emit(MetricUsedMemory, helpUsedMemory, lbs, grouping, float64(usedMB)/1024)
	}

	return nil
}

// collectSQL pushes the per-executor gauges derived from the sys tables.
func (s *Scraper) collectSQL(ctx context.Context) error {
	counts, err := s.client.ExecutorCounts(ctx)
	if err != nil {
		return errors.WithMessage(err, "failed to query sys.nodes")
	}
	for _, hc := range counts {
		s.emitExecutor(MetricSQLExecutors, hc.Hostname, hc.Count)
	}

	waiting, err := s.client.WaitingThreads(ctx)
	if err != nil {
		return errors.WithMessage(err, "failed to query sys.threads")
	}
	for _, hc := range waiting {
		s.emitExecutor(MetricThreadsWaiting, hc.Hostname, hc.Count)
	}

	memory, err := s.client.MemoryStats(ctx)
	if err != nil {
		return errors.WithMessage(err, "failed to query sys.memory")
	}
	for _, m := range memory {
		s.emitExecutor(MetricDirectMax, m.Hostname, m.DirectMax)
		s.emitExecutor(MetricDirectCurrent, m.Hostname, m.DirectCurrent)
		s.emitExecutor(MetricHeapMax, m.Hostname, m.HeapMax)
		s.emitExecutor(MetricHeapCurrent, m.Hostname, m.HeapCurrent)
	}

	return nil
}

func (s *Scraper) emitExecutor(family, hostname string, value float64) {
	s.emit(family, helpSQL,
		map[string]string{"executor": hostname},
		map[string]string{"job": s.Cluster(), "executor": hostname},
		value)
}

// collectSources probes every SOURCE catalog entry and pushes its HTTP
// status plus the cluster-wide view count.
func (s *Scraper) collectSources(ctx context.Context) error {
	entries, err := s.client.Catalog(ctx)
	if err != nil {
		return errors.WithMessage(err, "failed to list catalog")
	}

	job := s.Cluster()

	for _, entry := range entries {
		if entry.ContainerType != dremio.ContainerTypeSource {
			continue
		}

		code, err := s.client.CatalogEntryStatus(ctx, entry.ID)
		if err != nil {
			// transport failure, not an HTTP status; report 0 so the
			// source still shows as unhealthy
			logger.Warningf("cluster %s: source %s status check failed: %v", job, entry.Name(), err)
			code = 0
		}

		s.emit(MetricSourceStatus, helpSourceStatus,
			map[string]string{"source": entry.Name()},
			map[string]string{"job": job, "source": entry.Name()},
			float64(code))
	}

	vds, err := s.client.ViewCount(ctx)
	if err != nil {
		return errors.WithMessage(err, "failed to count views")
	}
	s.emit(MetricVDSCount, helpSQL, nil, map[string]string{"job": job}, vds)

	return nil
}
