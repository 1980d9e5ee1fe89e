/*
Package api serves the analytic queries over HTTP.

Every route answers GET only and takes the search term from the "term" query
parameter; a missing term matches every post with text.

	GET /tweets_per_day    ?term=   posts per UTC day
	GET /unique_users      ?term=   distinct authors
	GET /average_likes     ?term=   mean like count
	GET /tweet_locations   ?term=   ten most frequent places
	GET /tweet_times       ?term=&granularity=second|hour
	GET /top_user          ?term=   most active author handle

Responses are JSON arrays with one element per result document, in pipeline
order. An empty result is "[]". Store failures answer 500 with
{"error":"internal server error"}; the cause is logged, not returned.

/health, /ready and /live report process health and /metrics exposes the
Prometheus registry. Requests are counted and timed per route and panics in
handlers are recovered into a 500.
*/
package api
