package updatequeue

import (
	"github.com/cockroachdb/pebble"
	"github.com/prometheus/client_golang/prometheus"
)

// PebbleCollector exports the durable queue store's pebble engine
// metrics, retargeted from pebble_collector.go's chotki-replica
// collector onto this package's queue-persistence store.
type PebbleCollector struct {
	db *pebble.DB

	compactionCount         *prometheus.Desc
	compactionEstimatedDebt *prometheus.Desc
	compactionInProgress    *prometheus.Desc

	memtableSize  *prometheus.Desc
	memtableCount *prometheus.Desc

	walFiles        *prometheus.Desc
	walSize         *prometheus.Desc
	walBytesWritten *prometheus.Desc
}

func NewPebbleCollector(db *pebble.DB) *PebbleCollector {
	const ns = "delta_index_maintainer_updatequeue_"
	return &PebbleCollector{
		db: db,
		compactionCount: prometheus.NewDesc(
			ns+"pebble_compaction_count_total",
			"Total number of compactions performed against the update queue's durable store",
			nil, nil,
		),
		compactionEstimatedDebt: prometheus.NewDesc(
			ns+"pebble_compaction_estimated_debt_bytes",
			"Estimated bytes that need compaction in the update queue's durable store",
			nil, nil,
		),
		compactionInProgress: prometheus.NewDesc(
			ns+"pebble_compaction_in_progress_bytes",
			"Bytes being compacted currently in the update queue's durable store",
			nil, nil,
		),
		memtableSize: prometheus.NewDesc(
			ns+"pebble_memtable_size_bytes",
			"Current memtable size of the update queue's durable store",
			nil, nil,
		),
		memtableCount: prometheus.NewDesc(
			ns+"pebble_memtable_count",
			"Current memtable count of the update queue's durable store",
			nil, nil,
		),
		walFiles: prometheus.NewDesc(
			ns+"pebble_wal_files",
			"Live WAL files in the update queue's durable store",
			nil, nil,
		),
		walSize: prometheus.NewDesc(
			ns+"pebble_wal_size_bytes",
			"Live WAL size of the update queue's durable store",
			nil, nil,
		),
		walBytesWritten: prometheus.NewDesc(
			ns+"pebble_wal_bytes_written_total",
			"Physical bytes written to the update queue's durable store's WAL",
			nil, nil,
		),
	}
}

func (pc *PebbleCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- pc.compactionCount
	ch <- pc.compactionEstimatedDebt
	ch <- pc.compactionInProgress
	ch <- pc.memtableSize
	ch <- pc.memtableCount
	ch <- pc.walFiles
	ch <- pc.walSize
	ch <- pc.walBytesWritten
}

func (pc *PebbleCollector) Collect(ch chan<- prometheus.Metric) {
	metrics := pc.db.Metrics()

	ch <- prometheus.MustNewConstMetric(pc.compactionCount, prometheus.CounterValue, float64(metrics.Compact.Count))
	ch <- prometheus.MustNewConstMetric(pc.compactionEstimatedDebt, prometheus.GaugeValue, float64(metrics.Compact.EstimatedDebt))
	ch <- prometheus.MustNewConstMetric(pc.compactionInProgress, prometheus.GaugeValue, float64(metrics.Compact.InProgressBytes))
	ch <- prometheus.MustNewConstMetric(pc.memtableSize, prometheus.GaugeValue, float64(metrics.MemTable.Size))
	ch <- prometheus.MustNewConstMetric(pc.memtableCount, prometheus.GaugeValue, float64(metrics.MemTable.Count))
	ch <- prometheus.MustNewConstMetric(pc.walFiles, prometheus.GaugeValue, float64(metrics.WAL.Files))
	ch <- prometheus.MustNewConstMetric(pc.walSize, prometheus.GaugeValue, float64(metrics.WAL.Size))
	ch <- prometheus.MustNewConstMetric(pc.walBytesWritten, prometheus.CounterValue, float64(metrics.WAL.BytesWritten))
}
