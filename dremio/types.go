package dremio

import (
	"strconv"
	"strings"
)

const EngineStateRunning = "RUNNING"

type loginResponse struct {
	Token   string `json:"token"`
	Version string `json:"version"`
}

// Engine is one entry of /apiv2/provision/clusters, an executor pool
// provisioned on YARN or Kubernetes.
type Engine struct {
	Name         string     `json:"name"`
	CurrentState string     `json:"currentState"`
	Containers   Containers `json:"containers"`
}

type Containers struct {
	PendingCount         int         `json:"pendingCount"`
	ProvisioningCount    int         `json:"provisioningCount"`
	DecommissioningCount int         `json:"decommissioningCount"`
	RunningList          []Container `json:"runningList"`
}

type Container struct {
	ContainerPropertyList []ContainerProperty `json:"containerPropertyList"`
}

type ContainerProperty struct {
	Key   string     `json:"key"`
	Value FlexString `json:"value"`
}

// FlexString decodes both JSON strings and bare numbers; the provisioning
// API is not consistent about memoryMB across Dremio versions.
type FlexString string

func (f *FlexString) UnmarshalJSON(bs []byte) error {
	s := strings.Trim(string(bs), `"`)
	*f = FlexString(s)
	return nil
}

func (f FlexString) Int() int {
	n, err := strconv.Atoi(string(f))
	if err != nil {
		return 0
	}
	return n
}

func (e *Engine) Running() bool {
	return e.CurrentState == EngineStateRunning
}

// DesiredExecutors is the executor count the engine is converging to:
// already running plus pending and provisioning, minus decommissioning.
func (e *Engine) DesiredExecutors() int {
	c := e.Containers
	return c.PendingCount + c.ProvisioningCount + len(c.RunningList) - c.DecommissioningCount
}

func (e *Engine) RunningExecutors() int {
	return len(e.Containers.RunningList)
}

// Memory walks the running containers and returns the summed memoryMB of
// the live executors and the per-executor memoryMB used for the allocation
// estimate (desired executors x container size).
func (e *Engine) Memory() (usedMB, perExecutorMB int) {
	for _, container := range e.Containers.RunningList {
		for _, prop := range container.ContainerPropertyList {
			if prop.Key == "memoryMB" {
				perExecutorMB = prop.Value.Int()
			}
		}
		usedMB += perExecutorMB
	}
	return usedMB, perExecutorMB
}

// ExecutorHosts lists the host property of every running container.
func (e *Engine) ExecutorHosts() []string {
	var hosts []string
	for _, container := range e.Containers.RunningList {
		for _, prop := range container.ContainerPropertyList {
			if prop.Key == "host" {
				hosts = append(hosts, string(prop.Value))
			}
		}
	}
	return hosts
}

// CatalogEntry is one element of the /api/v3/catalog listing.
type CatalogEntry struct {
	ID            string   `json:"id"`
	Path          []string `json:"path"`
	ContainerType string   `json:"containerType"`
}

const ContainerTypeSource = "SOURCE"

func (e CatalogEntry) Name() string {
	if len(e.Path) == 0 {
		return ""
	}
	return e.Path[0]
}

// HostCount is one row of the per-hostname aggregation queries.
type HostCount struct {
	Hostname string
	Count    float64
}

// MemoryStat is one row of sys.memory.
type MemoryStat struct {
	Hostname      string
	DirectMax     float64
	DirectCurrent float64
	HeapMax       float64
	HeapCurrent   float64
}
