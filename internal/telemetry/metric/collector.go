package metric

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/vault-go/internal/core/service"
)

// collectTimeout bounds how long a scrape waits for a busy device.
const collectTimeout = time.Second

// Collector reports device, parameter and budget state at scrape time.
type Collector struct {
	registry *service.Registry

	size      *prometheus.Desc
	capacity  *prometheus.Desc
	segments  *prometheus.Desc
	resident  *prometheus.Desc
	quantum   *prometheus.Desc
	qset      *prometheus.Desc
	memUsed   *prometheus.Desc
	memLimit  *prometheus.Desc
	devices   *prometheus.Desc
	scrapeErr *prometheus.Desc
}

// NewCollector creates a collector over registry.
func NewCollector(registry *service.Registry) *Collector {
	device := []string{"device"}
	return &Collector{
		registry:  registry,
		size:      prometheus.NewDesc("vault_device_size_bytes", "High-water mark of bytes written.", device, nil),
		capacity:  prometheus.NewDesc("vault_device_capacity_bytes", "Logical capacity (quantum * qset).", device, nil),
		segments:  prometheus.NewDesc("vault_device_segments", "Allocated segments.", device, nil),
		resident:  prometheus.NewDesc("vault_device_resident_bytes", "Bytes held by allocated storage.", device, nil),
		quantum:   prometheus.NewDesc("vault_params_quantum_bytes", "Current default segment size.", nil, nil),
		qset:      prometheus.NewDesc("vault_params_qset", "Current default segment count.", nil, nil),
		memUsed:   prometheus.NewDesc("vault_memory_used_bytes", "Bytes reserved against the memory budget.", nil, nil),
		memLimit:  prometheus.NewDesc("vault_memory_limit_bytes", "Memory budget, 0 when unbounded.", nil, nil),
		devices:   prometheus.NewDesc("vault_devices", "Registered devices.", nil, nil),
		scrapeErr: prometheus.NewDesc("vault_device_scrape_errors", "Devices skipped because their lock was busy.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.size, c.capacity, c.segments, c.resident,
		c.quantum, c.qset, c.memUsed, c.memLimit, c.devices, c.scrapeErr,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	skipped := 0
	for _, dev := range c.registry.Devices() {
		st, err := dev.Stat(ctx)
		if err != nil {
			skipped++
			continue
		}
		label := strconv.Itoa(st.Index)
		ch <- prometheus.MustNewConstMetric(c.size, prometheus.GaugeValue, float64(st.Size), label)
		ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(st.Capacity), label)
		ch <- prometheus.MustNewConstMetric(c.segments, prometheus.GaugeValue, float64(st.Segments), label)
		ch <- prometheus.MustNewConstMetric(c.resident, prometheus.GaugeValue, float64(st.Resident), label)
	}

	quantum, qset := c.registry.Params().Snapshot()
	budget := c.registry.Budget()
	ch <- prometheus.MustNewConstMetric(c.quantum, prometheus.GaugeValue, float64(quantum))
	ch <- prometheus.MustNewConstMetric(c.qset, prometheus.GaugeValue, float64(qset))
	ch <- prometheus.MustNewConstMetric(c.memUsed, prometheus.GaugeValue, float64(budget.Used()))
	ch <- prometheus.MustNewConstMetric(c.memLimit, prometheus.GaugeValue, float64(budget.Limit()))
	ch <- prometheus.MustNewConstMetric(c.devices, prometheus.GaugeValue, float64(c.registry.Len()))
	ch <- prometheus.MustNewConstMetric(c.scrapeErr, prometheus.GaugeValue, float64(skipped))
}
