// Package redis connects a go-redis client with retries and exposes a
// readiness check.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//	r.Get("/health/ready", httpserver.ReadinessHandler(log, 0,
//		httpserver.CheckFunc("redis", redis.Healthcheck(client)),
//	))
package redis
