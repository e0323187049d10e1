package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ValidationOutcome string

var (
	ValidationRequested        ValidationOutcome = "requested"
	ValidationReused           ValidationOutcome = "reused"
	ValidationAuthorized       ValidationOutcome = "authorized"
	ValidationInvalidSignature ValidationOutcome = "invalid_signature"
	ValidationExpired          ValidationOutcome = "expired"
	ValidationNoPending        ValidationOutcome = "no_pending_request"
	ValidationConsumed         ValidationOutcome = "consumed"
)

type nodePromMetrics struct {
	nodeUpUnixSeconds prometheus.Gauge
	blockHeight       prometheus.Gauge
	appendedBlocks    prometheus.Counter
	appendRaces       prometheus.Counter
	appendLatency     prometheus.Histogram
	blockSizeBytes    prometheus.Histogram
	chainFaults       prometheus.Gauge
	validations       *prometheus.CounterVec
	pendingRequests   prometheus.Gauge
	panicCount        prometheus.Counter
}

func newNodePromMetrics() *nodePromMetrics {
	return &nodePromMetrics{
		nodeUpUnixSeconds: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "starledger_node_up_timestamp_unix_seconds",
				Help: "Unix timestamp of the node start",
			},
		),
		blockHeight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "starledger_block_height",
				Help: "The current block height",
			},
		),
		appendedBlocks: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "starledger_appended_blocks_total",
				Help: "The total number of blocks appended since start",
			},
		),
		appendRaces: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "starledger_append_races_total",
				Help: "Appends that found their height already taken",
			},
		),
		appendLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name: "starledger_append_seconds",
				Help: "Duration in second of a block append, including the store write",
			},
		),
		blockSizeBytes: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "starledger_block_size_bytes",
				Help:    "The encoded block size in bytes",
				Buckets: prometheus.ExponentialBuckets(128, 2, 8),
			},
		),
		chainFaults: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "starledger_chain_faulty_blocks",
				Help: "Number of faulty heights found by the last chain validation",
			},
		),
		validations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "starledger_validation_requests_total",
				Help: "Validation workflow transitions by outcome",
			},
			[]string{"outcome"},
		),
		pendingRequests: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "starledger_validation_pending",
				Help: "Addresses with a live validation request or authorization",
			},
		),
		panicCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "starledger_panic_total",
				Help: "Recovered panics in background goroutines",
			},
		),
	}
}

// registered once per process; promauto panics on duplicate registration
var nodeMetrics = newNodePromMetrics()

// InitMetrics stamps the node start time
func InitMetrics() {
	nodeMetrics.nodeUpUnixSeconds.SetToCurrentTime()
}

// Handler exposes the default registry for routers other than ServeMux
func Handler() http.Handler {
	return promhttp.Handler()
}

func SetBlockHeight(blockHeight uint64) {
	nodeMetrics.blockHeight.Set(float64(blockHeight))
}

func RecordAppendedBlock(sizeBytes int, duration time.Duration) {
	nodeMetrics.appendedBlocks.Inc()
	nodeMetrics.blockSizeBytes.Observe(float64(sizeBytes))
	nodeMetrics.appendLatency.Observe(duration.Seconds())
}

func IncreaseAppendRaceCount() {
	nodeMetrics.appendRaces.Inc()
}

func SetChainFaults(n int) {
	nodeMetrics.chainFaults.Set(float64(n))
}

func RecordValidation(outcome ValidationOutcome) {
	nodeMetrics.validations.With(prometheus.Labels{
		"outcome": string(outcome),
	}).Inc()
}

func SetPendingValidations(n int) {
	nodeMetrics.pendingRequests.Set(float64(n))
}

func IncreasePanicCount() {
	nodeMetrics.panicCount.Inc()
}
