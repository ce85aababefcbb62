package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Database metrics
var (
	// DBQueriesTotal tracks the total number of database queries
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_queries_total",
			Help: "Total number of database queries executed",
		},
		[]string{"query_type", "table", "status"},
	)

	// DBQueryDuration tracks the duration of database queries
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query_type", "table"},
	)

	// DBConnectionsOpen tracks the number of open database connections
	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_open",
			Help: "Number of established connections both in use and idle",
		},
	)

	// DBConnectionsInUse tracks the number of connections currently in use
	DBConnectionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_in_use",
			Help: "Number of connections currently in use",
		},
	)

	// DBConnectionsIdle tracks the number of idle connections
	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle connections",
		},
	)

	// AppInfo provides static information about the application
	AppInfo = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "greenhouse_app_info",
			Help: "Application information (always 1)",
		},
	)

	// AppStartTime records when the application started
	AppStartTime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "greenhouse_app_start_time_seconds",
			Help: "Unix timestamp of when the application started",
		},
	)
)

// Greenhouse pipeline metrics
var (
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenhouse_predictions_total",
			Help: "Next-day temperature predictions by source (model, mean, default)",
		},
		[]string{"source"},
	)

	TrainingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "greenhouse_training_duration_seconds",
			Help:    "Duration of model training runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
	)

	TrainingLoss = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "greenhouse_training_loss",
			Help: "Final training loss of the last completed run",
		},
	)

	// ActuatorState is 1 when the last recommendation switched the actuator on
	ActuatorState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "greenhouse_actuator_state",
			Help: "Last recommended actuator state (1 = ON, 0 = OFF)",
		},
		[]string{"actuator"},
	)

	FetchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenhouse_fetch_errors_total",
			Help: "Failed weather data fetches by dataset",
		},
		[]string{"dataset"},
	)

	LedgerWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenhouse_ledger_writes_total",
			Help: "History ledger writes by operation and status",
		},
		[]string{"operation", "status"},
	)
)

func init() {
	// Set app info to 1 (always visible)
	AppInfo.Set(1)
	// Record app start time
	AppStartTime.SetToCurrentTime()
}

// RecordDBQuery records a database query execution
func RecordDBQuery(queryType, table string, duration time.Duration, err error) {
	DBQueriesTotal.WithLabelValues(queryType, table, status(err)).Inc()
	DBQueryDuration.WithLabelValues(queryType, table).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics
func UpdateDBConnectionStats(open, inUse, idle int) {
	DBConnectionsOpen.Set(float64(open))
	DBConnectionsInUse.Set(float64(inUse))
	DBConnectionsIdle.Set(float64(idle))
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordLedgerWrite records one persisted history mutation
func RecordLedgerWrite(operation string, err error) {
	LedgerWritesTotal.WithLabelValues(operation, status(err)).Inc()
}

func RecordPrediction(source string) {
	PredictionsTotal.WithLabelValues(source).Inc()
}

// RecordTraining records a completed training run
func RecordTraining(duration time.Duration, finalLoss float64) {
	TrainingDuration.Observe(duration.Seconds())
	TrainingLoss.Set(finalLoss)
}

func RecordFetchError(dataset string) {
	FetchErrorsTotal.WithLabelValues(dataset).Inc()
}

// SetActuatorState publishes the recommended state of one actuator
func SetActuatorState(actuator string, on bool) {
	v := 0.0
	if on {
		v = 1
	}
	ActuatorState.WithLabelValues(actuator).Set(v)
}
