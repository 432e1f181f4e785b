package main

import (
	"flag"
	"net/http"

	"github.com/facebookgo/httpdown"
	"go.uber.org/zap"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		panic(err)
	}

	// Prepare the stoppable HTTP server
	server := &http.Server{
		Addr: cfg.Addr,
	}
	hd := &httpdown.HTTP{
		StopTimeout: cfg.StopTimeout,
		KillTimeout: cfg.KillTimeout,
	}

	flag.StringVar(&server.Addr, "addr", server.Addr, "http service address")
	flag.DurationVar(&hd.StopTimeout, "stop-timeout", hd.StopTimeout, "stop timeout")
	flag.DurationVar(&hd.KillTimeout, "kill-timeout", hd.KillTimeout, "kill timeout")
	origin := flag.String("origin", cfg.Origin, "websocket server checks Origin headers against this scheme://host[:port]")
	queueCap := flag.Int("queue-cap", cfg.QueueCap, "per-client event queue capacity")
	debug := flag.Bool("debug", cfg.Debug, "development logging")
	flag.Parse()

	logger := newLogger(*debug)
	defer logger.Sync()

	startMetrics()
	defer finalMetrics()

	h := newHub(logger.Sugar(), *queueCap)
	defer h.shutdown()

	// Start the server
	server.Handler = newHandler(h, *origin)
	if err := httpdown.ListenAndServe(server, hd); err != nil {
		panic(err)
	}
}

func newLogger(debug bool) *zap.Logger {
	if debug {
		logger, _ := zap.NewDevelopment()
		return logger
	}
	logger, _ := zap.NewProduction()
	return logger
}
