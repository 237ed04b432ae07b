// demo-server serves a fake YouTube channel and a fake MeTube instance so that
// ytmetube can be recorded or tried without touching the real services.
//
//	go run ./cmd/demo-server --port 8090
//	ytmetube --metube-url http://localhost:8090/metube --channel @ExampleChannel \
//	  --config demo.yaml   # with youtube.base_url: http://localhost:8090
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ytmetube/internal/fixture"
	"ytmetube/internal/logger"
)

func main() {
	port := flag.Int("port", 8090, "Port to run the demo server on")
	host := flag.String("host", "localhost", "Host to bind the demo server to")
	failEvery := flag.Int("fail-every", 0, "answer every n-th MeTube /add with a 500 (0 never fails)")
	flag.Parse()

	log := logger.New(logger.Options{Level: "info", Component: "demo-server"})
	addr := fmt.Sprintf("%s:%d", *host, *port)
	server := &http.Server{
		Addr:              addr,
		Handler:           createHandler(*failEvery),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", "http://"+addr).Msg("demo server starting")
		log.Info().Str("channel", "http://"+addr+"/@ExampleChannel").Msg("demo channel")
		log.Info().Str("metube", "http://"+addr+"/metube").Msg("fake MeTube")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down demo server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}
}

// createHandler mounts the fake MeTube under /metube and the fake YouTube everywhere else.
func createHandler(failEvery int) http.Handler {
	var statuses []int
	if failEvery > 0 {
		for i := 1; i <= 100; i++ {
			if i%failEvery == 0 {
				statuses = append(statuses, http.StatusInternalServerError)
			} else {
				statuses = append(statuses, http.StatusOK)
			}
		}
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Mount("/metube", http.StripPrefix("/metube", fixture.NewMeTube(statuses...)))
	r.Handle("/*", fixture.NewYouTube(fixture.DemoChannel()))
	return r
}
