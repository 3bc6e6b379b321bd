// Package metrics implements kernel.Metrics against prometheus/client_golang,
// grounded on the gauge/counter patterns in the pack's scheduler-adjacent
// manifests (SchedTest, nmxmxh-inos_v1, maumercado-task-queue-go).
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector implements kernel.Metrics. Every method is called from inside
// the kernel's critical section, so all of these must be non-blocking —
// prometheus gauge/counter Set/Inc calls are.
type Collector struct {
	activeTasks     prometheus.Gauge
	queueDepth      *prometheus.GaugeVec
	ticks           prometheus.Counter
	alarmFires      *prometheus.CounterVec
	stateTransition *prometheus.CounterVec
}

// New registers the kernel's metric set on reg and returns a Collector
// ready to pass to kernel.WithMetrics. Panics if reg already has
// conflicting collectors registered, matching prometheus.MustRegister's own
// contract.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		activeTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nanorts",
			Name:      "active_tasks",
			Help:      "Number of tasks currently in READY, RUN, or WAIT.",
		}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "nanorts",
			Name:      "queue_depth",
			Help:      "Number of items currently buffered in each queue.",
		}, []string{"queue"}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nanorts",
			Name:      "ticks_total",
			Help:      "Number of system ticks processed.",
		}),
		alarmFires: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nanorts",
			Name:      "alarm_fires_total",
			Help:      "Number of times each alarm has fired.",
		}, []string{"alarm"}),
		stateTransition: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nanorts",
			Name:      "task_state_transitions_total",
			Help:      "Number of task-state transitions, by destination state.",
		}, []string{"state"}),
	}
	reg.MustRegister(c.activeTasks, c.queueDepth, c.ticks, c.alarmFires, c.stateTransition)
	return c
}

func (c *Collector) SetActiveTasks(n int) { c.activeTasks.Set(float64(n)) }

func (c *Collector) SetQueueDepth(queueID int, depth int) {
	c.queueDepth.WithLabelValues(strconv.Itoa(queueID)).Set(float64(depth))
}

func (c *Collector) IncTicks() { c.ticks.Inc() }

func (c *Collector) IncAlarmFired(alarmID int) {
	c.alarmFires.WithLabelValues(strconv.Itoa(alarmID)).Inc()
}

func (c *Collector) IncTaskStateTransition(state string) {
	c.stateTransition.WithLabelValues(state).Inc()
}
