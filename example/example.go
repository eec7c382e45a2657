package main

import (
	"context"
	"log"
	"net"
	"time"

	"github.com/gostatsc/gostatsc"
	"github.com/gostatsc/gostatsc/pkg/collector"
	"github.com/gostatsc/gostatsc/pkg/writer"
)

func main() {
	conn, err := net.Dial("udp", "127.0.0.1:8125")
	if err != nil {
		log.Fatalf("dial: %v", err)
	}

	opts := collector.DefaultOptions(writer.NewSimple(conn))
	opts.StatsPrefix = "example."
	opts.FlushInterval = time.Second
	opts.Closer = conn
	c, err := collector.NewCollector(opts)
	if err != nil {
		log.Fatalf("collector: %v", err)
	}

	ctx, cancelFunc := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	for i := 0; i < 100; i++ {
		c.Count("requests", gostatsc.Tags{"env:dev"})
		c.Gauge("queue.depth", nil, int64(i))
		c.Histogram("latency", gostatsc.Tags{"env:dev"}, int64(10+i))
		time.Sleep(50 * time.Millisecond)
	}

	// Cancellation drains whatever is still buffered before the socket closes.
	cancelFunc()
	<-done
}
