package collector

import (
	"context"

	"github.com/dremio-hub/dremio-monitor/stat"

	"github.com/toolkits/pkg/logger"
)

const (
	RoleMaster  = "Master"
	RoleStandby = "Standby"
)

// Coordinator status values are the historical dashboard encoding and differ
// between the roles:
//
//	master:  2 = API serving, 1 = only the JMX port answers, 0 = down
//	standby: 1 = API serving, 2 = only the JMX port answers, 0 = down
type coordinatorState struct {
	host   string
	role   string
	status int
}

// checkCoordinators probes master and, when configured, standby. It returns
// the per-coordinator states, the coordinator the round should talk to, and
// whether any coordinator serves the API.
func (s *Scraper) checkCoordinators(ctx context.Context) (states []coordinatorState, active string, up bool) {
	cfg := s.client.Config()
	active = cfg.MasterCoordinator

	masterStatus := 2
	if err := s.client.ServerStatus(ctx, cfg.MasterCoordinator); err != nil {
		logger.Warningf("cluster %s: master %s api check failed: %v", cfg.Name, cfg.MasterCoordinator, err)

		if cfg.StandbyEnabled() {
			active = cfg.StandbyCoordinator
			masterStatus = 1
			if err := s.client.ProbeJMX(ctx, cfg.MasterCoordinator); err != nil {
				masterStatus = 0
			}
		} else {
			masterStatus = 0
		}
	}

	states = append(states, coordinatorState{
		host:   cfg.MasterCoordinator,
		role:   RoleMaster,
		status: masterStatus,
	})

	standbyStatus := 0
	if cfg.StandbyEnabled() {
		standbyStatus = 1
		if err := s.client.ServerStatus(ctx, cfg.StandbyCoordinator); err != nil {
			logger.Warningf("cluster %s: standby %s api check failed: %v", cfg.Name, cfg.StandbyCoordinator, err)

			standbyStatus = 2
			if err := s.client.ProbeJMX(ctx, cfg.StandbyCoordinator); err != nil {
				standbyStatus = 0
			}
		}

		states = append(states, coordinatorState{
			host:   cfg.StandbyCoordinator,
			role:   RoleStandby,
			status: standbyStatus,
		})
	}

	up = masterStatus == 2 || (cfg.StandbyEnabled() && standbyStatus == 1)
	return states, active, up
}

func (s *Scraper) pushCoordinator(st coordinatorState) {
	s.emit(MetricCoordinatorUp, helpCoordinatorUp,
		map[string]string{"instance": st.host, "role": st.role},
		map[string]string{"job": s.Cluster(), "role": st.role},
		float64(st.status))

	stat.GaugeCoordinatorStatus.WithLabelValues(s.Cluster(), st.host, st.role).Set(float64(st.status))
}

// resetStale zeroes the series the gateway still holds for this job, so a
// cluster whose coordinators vanished does not keep reporting its last good
// values forever.
func (s *Scraper) resetStale() error {
	job := s.Cluster()

	engineSets, err := s.pusher.SeriesLabels(job, MetricClusterUp)
	if err != nil {
		return err
	}

	for _, labels := range engineSets {
		engine := labels["cluster"]
		grouping := map[string]string{"job": job, "cluster": engine}
		lbs := map[string]string{"cluster": engine}

		s.emit(MetricClusterUp, helpClusterUp, lbs, grouping, 0)
		s.emit(MetricTotalExecutors, helpTotalExecutors, lbs, grouping, 0)
		s.emit(MetricCurrentExecutors, helpCurrentExecutors, lbs, grouping, 0)
		s.emit(MetricAllocatedMemory, helpAllocatedMemory, lbs, grouping, 0)
		s.emit(MetricUsedMemory, helpUsedMemory, lbs, grouping, 0)
	}

	executorSets, err := s.pusher.SeriesLabels(job, MetricSQLExecutors)
	if err != nil {
		return err
	}

	for _, labels := range executorSets {
		executor := labels["executor"]
		grouping := map[string]string{"job": job, "executor": executor}
		lbs := map[string]string{"executor": executor}

		for family, help := range sqlExecutorFamilies {
			s.emit(family, help, lbs, grouping, 0)
		}
	}

	sourceSets, err := s.pusher.SeriesLabels(job, MetricSourceStatus)
	if err != nil {
		return err
	}

	for _, labels := range sourceSets {
		source := labels["source"]
		s.emit(MetricSourceStatus, helpSourceStatus,
			map[string]string{"source": source},
			map[string]string{"job": job, "source": source},
			sourceResetValue)
	}

	vdsSets, err := s.pusher.SeriesLabels(job, MetricVDSCount)
	if err != nil {
		return err
	}

	if len(vdsSets) > 0 {
		s.emit(MetricVDSCount, helpSQL, nil, map[string]string{"job": job}, 0)
	}

	total := len(engineSets) + len(executorSets) + len(sourceSets)
	logger.Infof("cluster %s: reset %d stale series groups on the gateway", job, total)

	return nil
}
