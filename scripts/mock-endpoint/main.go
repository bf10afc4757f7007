// Command mock-endpoint is a stand-in inference endpoint for exercising
// surge locally. It accepts POSTed payloads on /invocations, sleeps for
// a configurable simulated inference time, and fails a configurable
// fraction of requests the way a saturated model server would.
//
// Usage:
//
//	go run ./scripts/mock-endpoint -addr :8080 -latency 120ms -jitter 80ms -error-rate 0.02
//	surge run --endpoint http://localhost:8080/invocations --payload payload.json \
//	  --stages "1m:2:2,1m:4:2"
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync/atomic"
	"time"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	latency := flag.Duration("latency", 100*time.Millisecond, "base simulated inference time")
	jitter := flag.Duration("jitter", 50*time.Millisecond, "random latency added on top of the base")
	errorRate := flag.Float64("error-rate", 0, "fraction of requests answered with a model error (0.0-1.0)")
	flag.Parse()

	var served atomic.Int64

	http.HandleFunc("/invocations", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}

		delay := *latency
		if *jitter > 0 {
			delay += time.Duration(rand.Int63n(int64(*jitter)))
		}
		time.Sleep(delay)

		n := served.Add(1)
		variant := r.Header.Get("X-Target-Variant")

		w.Header().Set("Content-Type", "application/json")
		if *errorRate > 0 && rand.Float64() < *errorRate {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `{"error":"model overloaded","variant":%q}`, variant)
			return
		}
		fmt.Fprintf(w, `{"prediction":[0.1,0.9],"variant":%q,"served":%d}`, variant, n)
	})

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "healthy")
	})

	server := &http.Server{
		Addr:              *addr,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	log.Printf("mock inference endpoint on %s (latency %v +%v jitter, error rate %.2f)",
		*addr, *latency, *jitter, *errorRate)

	if err := server.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
