// Package devtools serves a live view of an effect runtime over HTTP.
//
// Endpoints:
//
//	GET /api/instances         live instances and their slots
//	GET /api/instances/{id}    one instance
//	GET /api/stats             cumulative runtime counters
//	GET /metrics               Prometheus scrape endpoint
//	GET /api/events            WebSocket stream of runtime events as JSON
//
// The Hub must be installed as an observer when the runtime is created:
//
//	hub := devtools.NewHub()
//	rt := effect.New(effect.WithObserver(hub))
//	srv := devtools.New(rt, hub)
//	go srv.ListenAndServe(ctx, "localhost:7070")
package devtools
