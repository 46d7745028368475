package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"

	"github.com/pithecene-io/snowsink/telemetry"
)

// reportGroupLag polls the consumer group's committed-offset lag on an
// interval and publishes it as a gauge per topic/partition, using the
// admin client rather than anything derived from the consumer's own
// fetch loop, so lag is measured the way an external operator would
// see it (against what's actually committed, not what's in flight).
func reportGroupLag(ctx context.Context, admin *kadm.Client, group string, telemetryClient telemetry.Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		lags, err := admin.Lag(ctx, group)
		if err != nil {
			fmt.Fprintf(os.Stderr, "lag check failed: group=%s: %v\n", group, err)
			continue
		}

		lags.Each(func(gl kadm.DescribedGroupLag) {
			if gl.Err != nil {
				return
			}
			gl.Lag.Each(func(l kadm.GroupMemberLag) {
				telemetryClient.SetGauge("kafka.consumer_lag", float64(l.Lag), map[string]string{
					"group":     group,
					"topic":     l.Topic,
					"partition": fmt.Sprintf("%d", l.Partition),
				})
			})
		})
	}
}
