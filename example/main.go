// Minimal usage example for corekit: a resilient GET decoded into a typed
// payload, a metrics snapshot, and a sync of the offline queue.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/driftwire/corekit"
)

type httpbinResponse struct {
	Slideshow struct {
		Title string `json:"title"`
	} `json:"slideshow"`
}

func main() {
	queuePath := filepath.Join(os.TempDir(), "corekit-example-queue.json")
	engine := corekit.New(
		corekit.WithRetryPolicy(corekit.NewDefaultRetryPolicy(3, 100*time.Millisecond, 5*time.Second, 2.0)),
		corekit.WithRateLimiter(10, time.Second),
		corekit.WithMemoryCache(10<<20, 2*time.Minute),
		corekit.WithCircuitBreaker(corekit.CircuitBreakerConfig{}),
		corekit.WithDeduplication(nil, nil),
		corekit.WithOfflineQueue(queuePath, 100),
		corekit.WithReachability(),
		corekit.WithSyncManager(true, func(r corekit.QueueResult) {
			fmt.Printf("queued call resolved: dropped=%v err=%v\n", r.Dropped, r.Err)
		}),
		corekit.WithSimpleLogger(),
		corekit.WithDebug(),
	)
	if !engine.IsValid() {
		log.Fatalf("invalid engine config: %v", engine.ValidationError())
	}
	defer engine.Shutdown()

	ctx := context.Background()
	endpoint := corekit.Endpoint{
		BaseURL: "https://httpbin.org",
		Path:    "/json",
		Method:  corekit.MethodGet,
		CachePolicy: corekit.CachePolicy{
			ReadFromCache: true,
			WriteToCache:  true,
		},
	}

	resp, err := corekit.Execute[httpbinResponse](ctx, engine, endpoint, corekit.JSONCodec{})
	if err != nil {
		log.Fatalf("GET failed: %v", err)
	}
	fmt.Printf("status=%d servedFromCache=%v title=%q\n", resp.Status, resp.Metadata.ServedFromCache, resp.Payload.Slideshow.Title)

	snapshot := engine.MetricsSnapshot()
	fmt.Printf("requests=%d success=%d avgLatency=%s\n", snapshot.Total, snapshot.Success, snapshot.AverageLatency)

	engine.SetReachability(corekit.ReachabilityReachable)
	engine.Sync(ctx)
}
