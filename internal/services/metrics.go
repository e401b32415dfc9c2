package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// uploadsTotal counts finished upload tasks by result (succeeded/failed).
	uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sos_uploads_total",
			Help: "Total number of recording upload tasks by result.",
		},
		[]string{"result"},
	)

	// uploadBytes records the size of successfully uploaded recordings.
	uploadBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "sos_upload_bytes",
			Help: "Size of uploaded recordings in bytes.",
			Buckets: []float64{
				16 << 10, 64 << 10, 256 << 10, // 16..256KiB
				1 << 20, 4 << 20, 16 << 20, 64 << 20, // 1..64MiB
			},
		},
	)

	// callRecordsTotal counts call record writes by result.
	callRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sos_call_records_total",
			Help: "Total number of call record writes by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(uploadsTotal, uploadBytes, callRecordsTotal)
}
