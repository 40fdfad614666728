package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Processor Metrics
var (
	LastProcessedBlock = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "processor_last_processed_block",
		Help: "The last block height the progress checkpoint was advanced to",
	})

	ProcessedBatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "processor_batches_total",
		Help: "The total number of batches processed",
	})

	ProcessedBlocks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "processor_blocks_total",
		Help: "The total number of blocks processed",
	})

	ProcessedItems = promauto.NewCounter(prometheus.CounterOpts{
		Name: "processor_items_total",
		Help: "The total number of items (logs and transactions) processed",
	})

	HandlerDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "processor_handler_duration_seconds",
		Help:    "Time spent inside the user handler per batch",
		Buckets: prometheus.DefBuckets,
	})
)

// Archive Metrics
var (
	ArchiveHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "archive_height",
		Help: "The last observed archive height",
	})

	ArchiveRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "archive_retries_total",
		Help: "The total number of retried archive requests",
	})

	ArchiveFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "archive_fetch_duration_seconds",
		Help:    "Time taken by a single archive query, retries included",
		Buckets: prometheus.DefBuckets,
	})
)

// Ingest Metrics
var (
	IngestBatchSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ingest_batch_size",
		Help: "The number of blocks decoded in the last fetched batch",
	})

	IngestMappingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ingest_mapping_duration_seconds",
		Help:    "Time taken to decode and order a fetched batch",
		Buckets: prometheus.DefBuckets,
	})
)

// Publisher Metrics
var (
	PublisherBlockCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "publisher_block_counter",
		Help: "The number of blocks published",
	})

	LastPublishedBlock = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "last_published_block",
		Help: "The last block height that was published",
	})

	PublishDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "publish_duration_seconds",
		Help:    "Time taken to publish block data to Kafka",
		Buckets: prometheus.DefBuckets,
	})
)
