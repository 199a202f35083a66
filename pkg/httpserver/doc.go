// Package httpserver runs the flowstate HTTP API with graceful shutdown.
//
// Run binds the listener, serves until the context ends, SIGINT/SIGTERM
// arrives or Shutdown is called, and then drains in-flight requests within
// the shutdown timeout. Listen failures are wrapped with ErrStart and drain
// failures with ErrShutdown.
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, router); err != nil {
//		log.Error("server stopped", logger.Error(err))
//	}
//
// LivenessHandler and ReadinessHandler serve the probes used by the API.
package httpserver
