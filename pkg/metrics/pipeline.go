package metrics

// Pipeline bundles the metrics the answering pipeline reports. One
// instance lives in the API process and is shared by the handlers.
type Pipeline struct {
	QueriesTotal      *Counter
	QueryErrors       *Counter
	RetrievalDegraded *Counter
	RerankFallback    *Counter
	VerifyIssues      *Counter
	RebuildsTotal     *Counter
	ActiveChunks      *Gauge
	AnswerLatency     *Histogram
	RebuildLatency    *Histogram
}

// NewPipeline registers the pipeline metrics on the registry.
func NewPipeline(r *Registry) *Pipeline {
	return &Pipeline{
		QueriesTotal:      r.Counter("pathwise_queries_total", "Total answer queries served."),
		QueryErrors:       r.Counter("pathwise_query_errors_total", "Answer queries that returned an error."),
		RetrievalDegraded: r.Counter("pathwise_retrieval_degraded_total", "Answers served lexical-only."),
		RerankFallback:    r.Counter("pathwise_rerank_fallback_total", "Answers that fell back to fused order."),
		VerifyIssues:      r.Counter("pathwise_verify_issues_total", "Verifier issues attached to answers."),
		RebuildsTotal:     r.Counter("pathwise_corpus_rebuilds_total", "Corpus version rebuilds."),
		ActiveChunks:      r.Gauge("pathwise_active_chunks", "Chunks in the active corpus version."),
		AnswerLatency:     r.Histogram("pathwise_answer_seconds", "End-to-end answer latency.", nil),
		RebuildLatency:    r.Histogram("pathwise_corpus_rebuild_seconds", "Corpus rebuild duration.", nil),
	}
}
