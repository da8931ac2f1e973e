package collector

// Metric families pushed to the gateway. Names and help texts are the
// long-standing dashboard contract, renaming any of them breaks existing
// Grafana boards and alert rules.
const (
	MetricAPIUp            = "dremio_api_up"
	MetricCoordinatorUp    = "dremio_api_coordinator_up"
	MetricClusterUp        = "dremio_api_cluster_up"
	MetricTotalExecutors   = "dremio_api_total_executors_Value"
	MetricCurrentExecutors = "dremio_api_current_executors_Value"
	MetricAllocatedMemory  = "dremio_api_cluster_allocated_memory_Value"
	MetricUsedMemory       = "dremio_api_cluster_used_memory_Value"

	MetricSQLExecutors   = "dremio_sql_executors_Value"
	MetricThreadsWaiting = "dremio_sql_threads_waiting_Value"
	MetricDirectMax      = "dremio_sql_executor_direct_max_Value"
	MetricDirectCurrent  = "dremio_sql_executor_direct_current_Value"
	MetricHeapMax        = "dremio_sql_executor_heap_max_Value"
	MetricHeapCurrent    = "dremio_sql_executor_heap_current_Value"

	MetricSourceStatus = "dremio_api_source_status_Value"
	MetricVDSCount     = "dremio_sql_vds_count_Value"
)

const (
	helpAPIUp            = "Whether the last scrape round succeeded, pushed via Gateway"
	helpCoordinatorUp    = "Coordinator status, pushed via Gateway"
	helpClusterUp        = "Child cluster status, pushed via Gateway"
	helpTotalExecutors   = "Total number of expected executors, pushed via Gateway"
	helpCurrentExecutors = "Current number of expected executors, pushed via Gateway"
	helpAllocatedMemory  = "Allocated memory (GB) to a child cluster, pushed via Gateway"
	helpUsedMemory       = "Used memory (GB) for a child cluster, pushed via Gateway"
	helpSQL              = "SQL Metric, pushed via Gateway"
	helpSourceStatus     = "Source status, pushed via Gateway"
)

// sqlExecutorFamilies are the per-executor families zeroed together when the
// cluster goes dark.
var sqlExecutorFamilies = map[string]string{
	MetricSQLExecutors:   helpSQL,
	MetricThreadsWaiting: helpSQL,
	MetricDirectMax:      helpSQL,
	MetricDirectCurrent:  helpSQL,
	MetricHeapMax:        helpSQL,
	MetricHeapCurrent:    helpSQL,
}

// sourceResetValue marks a source as unreachable when the coordinators are
// down, mirroring an HTTP 400 from the catalog probe.
const sourceResetValue = 400
