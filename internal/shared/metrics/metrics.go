package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	routingActions = newLabeledCounter()
	routingFailed  = newLabeledCounter()

	ledgerFullTotal    atomic.Uint64
	ledgerNoMatchTotal atomic.Uint64

	progressBulkItemsTotal  atomic.Uint64
	progressBulkErrorsTotal atomic.Uint64

	notificationsCreatedTotal atomic.Uint64

	eventsPublishedTotal       atomic.Uint64
	eventsPublishFailedTotal   atomic.Uint64
	workerJobsReceivedTotal    atomic.Uint64
	workerJobsCompletedTotal   atomic.Uint64
	workerJobsFailedTotal      atomic.Uint64
	workerJobsUnrecoverableTot atomic.Uint64

	routingDuration = newHistogram([]float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500})
)

// IncRoutingAction counts a committed routing workflow by action (enviado, recibido, ...).
func IncRoutingAction(action string) {
	routingActions.Inc(action)
}

// IncRoutingFailed counts a routing workflow that rolled back.
func IncRoutingFailed(action string) {
	routingFailed.Inc(action)
}

// IncLedgerFull counts sends that found no free section.
func IncLedgerFull() {
	ledgerFullTotal.Add(1)
}

// IncLedgerNoMatch counts receipts that matched no section.
func IncLedgerNoMatch() {
	ledgerNoMatchTotal.Add(1)
}

// AddProgressBulk records the outcome of one bulk progress request.
func AddProgressBulk(items, errors int) {
	progressBulkItemsTotal.Add(uint64(max(items, 0)))
	progressBulkErrorsTotal.Add(uint64(max(errors, 0)))
}

// AddNotificationsCreated counts notifications inserted by the worker or handlers.
func AddNotificationsCreated(n int) {
	if n > 0 {
		notificationsCreatedTotal.Add(uint64(n))
	}
}

// IncEventsPublished counts routing events handed to the queue.
func IncEventsPublished() { eventsPublishedTotal.Add(1) }

// IncEventsPublishFailed counts events the queue rejected.
func IncEventsPublishFailed() { eventsPublishFailedTotal.Add(1) }

// IncWorkerJobsReceived counts messages pulled by the worker.
func IncWorkerJobsReceived() { workerJobsReceivedTotal.Add(1) }

// IncWorkerJobsCompleted counts messages processed and deleted.
func IncWorkerJobsCompleted() { workerJobsCompletedTotal.Add(1) }

// IncWorkerJobsFailed counts messages left on the queue for retry.
func IncWorkerJobsFailed() { workerJobsFailedTotal.Add(1) }

// IncWorkerJobsDeletedUnrecoverable counts malformed messages dropped from the queue.
func IncWorkerJobsDeletedUnrecoverable() { workerJobsUnrecoverableTot.Add(1) }

// ObserveRoutingDurationMs records a routing workflow duration in milliseconds.
func ObserveRoutingDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	routingDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeLabeledCounter(&buf, "routing_actions_total", "Routing workflows committed", "action", routingActions.Snapshot())
	writeLabeledCounter(&buf, "routing_failed_total", "Routing workflows rolled back", "action", routingFailed.Snapshot())
	writeCounter(&buf, "ledger_full_total", "Sends that found the section ledger full", ledgerFullTotal.Load())
	writeCounter(&buf, "ledger_no_match_total", "Receipts that matched no section", ledgerNoMatchTotal.Load())
	writeCounter(&buf, "progress_bulk_items_total", "Progress entries submitted in bulk", progressBulkItemsTotal.Load())
	writeCounter(&buf, "progress_bulk_errors_total", "Bulk progress entries rejected", progressBulkErrorsTotal.Load())
	writeCounter(&buf, "notifications_created_total", "Notifications inserted", notificationsCreatedTotal.Load())
	writeCounter(&buf, "events_published_total", "Routing events published", eventsPublishedTotal.Load())
	writeCounter(&buf, "events_publish_failed_total", "Routing events that failed to publish", eventsPublishFailedTotal.Load())
	writeCounter(&buf, "worker_jobs_received_total", "Queue messages received", workerJobsReceivedTotal.Load())
	writeCounter(&buf, "worker_jobs_completed_total", "Queue messages completed", workerJobsCompletedTotal.Load())
	writeCounter(&buf, "worker_jobs_failed_total", "Queue messages failed", workerJobsFailedTotal.Load())
	writeCounter(&buf, "worker_jobs_deleted_unrecoverable_total", "Malformed queue messages deleted", workerJobsUnrecoverableTot.Load())
	writeHistogram(&buf, "routing_duration_ms", "Routing workflow duration in milliseconds", routingDuration.Snapshot())
	return buf.String()
}

type labeledCounter struct {
	mu     sync.Mutex
	values map[string]uint64
}

func newLabeledCounter() *labeledCounter {
	return &labeledCounter{values: make(map[string]uint64)}
}

func (l *labeledCounter) Inc(label string) {
	l.mu.Lock()
	l.values[label]++
	l.mu.Unlock()
}

func (l *labeledCounter) Snapshot() map[string]uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]uint64, len(l.values))
	for k, v := range l.values {
		out[k] = v
	}
	return out
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe records value in the first bucket whose bound is >= value.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeLabeledCounter(buf *bytes.Buffer, name, help, label string, values map[string]uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(buf, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// Since returns the elapsed milliseconds since start.
func Since(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
