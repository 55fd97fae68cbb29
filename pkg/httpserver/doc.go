// Package httpserver runs an http.Handler with sane timeouts, graceful
// shutdown on context cancellation or SIGINT/SIGTERM, and health probes.
//
// Run binds the listener before serving, so a bad address fails immediately
// with ErrStart and Addr reports the bound address (useful with ":0").
// WithOnReady and WithOnShutdown hook into the life-cycle.
//
// LivenessHandler and ReadinessHandler are meant for /health/live and
// /health/ready. Readiness checks run with the request context and a per-check
// timeout; a failing check answers 503 NOT_READY.
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	r.Get("/health/ready", httpserver.ReadinessHandler(log, 0,
//		httpserver.CheckFunc("store", store.Healthcheck),
//	))
//	if err := srv.Run(ctx, r); err != nil {
//		log.Error("server stopped", logger.Error(err))
//	}
package httpserver
