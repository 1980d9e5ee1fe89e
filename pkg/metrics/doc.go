/*
Package metrics provides Prometheus metrics and health checks for potato.

All metrics are registered on the default registry at package init and are
exposed by Handler, which the API server mounts at /metrics.

# Metrics

Ingestion:

	potato_ingest_rows_total{outcome}             processed, rejected
	potato_ingest_rejected_total{reason}          missing_id, missing_created_at, malformed_row
	potato_ingest_chunks_total{result}            written, skipped, failed
	potato_ingest_chunk_duration_seconds          normalize and write time per chunk
	potato_ingest_resident_memory_bytes           RSS sampled after each chunk
	potato_upsert_operations_total{result}        matched, modified, upserted, failed
	potato_field_conversions_total{field,outcome} attempt, success

Store:

	potato_documents_total                        documents in the collection

API:

	potato_api_requests_total{endpoint,status}
	potato_api_request_duration_seconds{endpoint}
	potato_aggregate_duration_seconds{pipeline}

# Timing

	timer := metrics.NewTimer()
	docs, err := store.Aggregate(ctx, q)
	timer.ObserveDurationVec(metrics.AggregateDuration, string(q.Kind))

# Health

HealthChecker tracks named components. /health reports unhealthy when any
component is unhealthy; /ready reports not ready until every critical
component passed to NewHealthChecker is registered and healthy; /live always
answers 200 while the process runs.

Collector polls a store on an interval, marking the "store" component from
Ping and setting potato_documents_total from Count.
*/
package metrics
