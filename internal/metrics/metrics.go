package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 检索流水线指标
var (
	// SearchesTotal 语义检索次数，按结果分类（ok/empty/error）
	SearchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatrag",
		Subsystem: "retrieval",
		Name:      "searches_total",
		Help:      "Semantic search calls by outcome.",
	}, []string{"outcome"})

	// RewriteOutcomes 查询改写结果，按结果分类（rewritten/unchanged）
	RewriteOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatrag",
		Subsystem: "retrieval",
		Name:      "rewrite_outcomes_total",
		Help:      "Query rewrite outcomes.",
	}, []string{"outcome"})

	// RetrievedChunks 每次检索返回的分块数分布
	RetrievedChunks = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "chatrag",
		Subsystem: "retrieval",
		Name:      "retrieved_chunks",
		Help:      "Number of chunks returned per search.",
		Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
	})

	// PollAttempts 单文件摄取轮询消耗的尝试次数分布
	PollAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "chatrag",
		Subsystem: "ingestion",
		Name:      "poll_attempts",
		Help:      "Attempts consumed by bounded single-file polls.",
		Buckets:   prometheus.LinearBuckets(1, 5, 7),
	})
)
