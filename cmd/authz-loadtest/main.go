package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/qtdata/influxdb/authz"
)

// flakyAuthorizer stands in for a real token-verification backend: it grants
// everything except every Nth call, with optional simulated latency.
type flakyAuthorizer struct {
	failEvery int
	maxDelay  time.Duration
	calls     atomic.Int64
}

func (f *flakyAuthorizer) Permissions(_ context.Context, _ []byte, requested []authz.Permission) ([]authz.Permission, error) {
	if f.maxDelay > 0 {
		time.Sleep(time.Duration(rand.Int63n(int64(f.maxDelay))))
	}
	if n := f.calls.Add(1); f.failEvery > 0 && n%int64(f.failEvery) == 0 {
		return nil, authz.ErrUnauthorized
	}
	granted := make([]authz.Permission, len(requested))
	copy(granted, requested)
	return granted, nil
}

func main() {
	var (
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "total permissions checks to issue")
		failEvery   = flag.Int("fail-every", 10, "fail every Nth check; 0 disables failures")
		maxDelay    = flag.Duration("max-delay", 200*time.Microsecond, "upper bound of simulated backend latency; 0 disables")
	)
	flag.Parse()

	if *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "concurrency and ops must be > 0")
		os.Exit(2)
	}

	reg := prometheus.NewRegistry()
	decorated, err := authz.NewInstrumentedAuthorizer(reg, &flakyAuthorizer{
		failEvery: *failEvery,
		maxDelay:  *maxDelay,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build decorator: %v\n", err)
		os.Exit(1)
	}

	requested := []authz.Permission{{
		Resource: authz.Resource{Kind: authz.ResourceDatabase, Name: "loadtest"},
		Action:   authz.ActionWrite,
	}}

	perWorker := *ops / *concurrency
	fmt.Printf("issuing %d checks across %d workers...\n", perWorker * *concurrency, *concurrency)

	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < *concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := context.Background()
			for i := 0; i < perWorker; i++ {
				token := []byte(uuid.NewString())
				_, _ = decorated.Permissions(ctx, token, requested)
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	fmt.Printf("done in %s (%.0f checks/s)\n", elapsed.Round(time.Millisecond),
		float64(perWorker * *concurrency)/elapsed.Seconds())
	printDistribution(reg)
}

func printDistribution(reg *prometheus.Registry) {
	families, err := reg.Gather()
	if err != nil {
		fmt.Fprintf(os.Stderr, "gather failed: %v\n", err)
		os.Exit(1)
	}

	for _, family := range families {
		if family.GetName() != authz.DurationMetric {
			continue
		}
		for _, m := range family.GetMetric() {
			var result string
			for _, label := range m.GetLabel() {
				if label.GetName() == "result" {
					result = label.GetValue()
				}
			}
			h := m.GetHistogram()
			count := h.GetSampleCount()
			fmt.Printf("\nresult=%s count=%d sum=%.4fs", result, count, h.GetSampleSum())
			if count > 0 {
				fmt.Printf(" avg=%s", time.Duration(h.GetSampleSum()/float64(count)*float64(time.Second)).Round(time.Microsecond))
			}
			fmt.Println()
			for _, bucket := range h.GetBucket() {
				fmt.Printf("  le=%-8g %d\n", bucket.GetUpperBound(), bucket.GetCumulativeCount())
			}
		}
	}
}
