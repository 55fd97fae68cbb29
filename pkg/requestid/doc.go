// Package requestid attaches a correlation id to every HTTP request.
//
// Middleware reuses a valid incoming X-Request-ID header or generates a UUID,
// echoes it back and stores it in the request context. Register
// LoggerExtractor with the logger so every record written with that context
// carries request_id:
//
//	log := logger.New(logger.WithContextExtractors(requestid.LoggerExtractor()))
//	r := chi.NewRouter()
//	r.Use(requestid.Middleware)
package requestid
