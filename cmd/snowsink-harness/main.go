// Command snowsink-harness is a demonstration consumer that wires a
// Kafka topic straight into the sink pipeline: it is not the connector
// itself (that runs inside a Kafka Connect worker), but exercises the
// same Context/Flusher/OffsetGate/Cleaner machinery end to end against
// a real broker and a real S3-compatible bucket.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/snowsink/config"
	"github.com/pithecene-io/snowsink/internal/clock"
	"github.com/pithecene-io/snowsink/record"
	"github.com/pithecene-io/snowsink/sink"
	"github.com/pithecene-io/snowsink/snowlog"
	"github.com/pithecene-io/snowsink/telemetry"
	"github.com/pithecene-io/snowsink/warehouse/s3stage"
)

// commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:    "snowsink-harness",
		Usage:   "Consume a Kafka topic and drive it through the snowsink pipeline",
		Version: commit,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "brokers", Usage: "Kafka seed brokers", Required: true},
			&cli.StringFlag{Name: "topic", Usage: "Kafka topic to consume", Required: true},
			&cli.StringFlag{Name: "group", Usage: "Kafka consumer group", Value: "snowsink-harness"},
			&cli.StringFlag{Name: "config", Usage: "Path to sink config YAML", Required: true},
			&cli.StringFlag{Name: "bucket", Usage: "S3 bucket used as stage storage", Required: true},
			&cli.StringFlag{Name: "region", Usage: "S3 region"},
			&cli.StringFlag{Name: "endpoint", Usage: "S3-compatible endpoint override"},
			&cli.BoolFlag{Name: "path-style", Usage: "Use path-style S3 addressing"},
			&cli.StringFlag{Name: "ingest-endpoint", Usage: "Base URL of the ingestion report API", Required: true},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if warnings := cfg.Normalize(); len(warnings) > 0 {
		for _, w := range warnings {
			fmt.Fprintf(os.Stderr, "config warning: %s\n", w)
		}
	}

	telemetryClient := telemetry.NewCollector()

	conn, err := s3stage.New(ctx, s3stage.Config{
		Bucket:         c.String("bucket"),
		Region:         c.String("region"),
		Endpoint:       c.String("endpoint"),
		UsePathStyle:   c.Bool("path-style"),
		IngestEndpoint: c.String("ingest-endpoint"),
		ConnectorName:  "snowsink-harness",
		Telemetry:      telemetryClient,
	})
	if err != nil {
		return fmt.Errorf("connecting to stage storage: %w", err)
	}
	defer conn.Close()

	topic := c.String("topic")
	registry := sink.NewRegistry()
	defer registry.CloseAll(context.Background())

	client, err := kgo.NewClient(
		kgo.SeedBrokers(c.StringSlice("brokers")...),
		kgo.ConsumerGroup(c.String("group")),
		kgo.ConsumeTopics(topic),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return fmt.Errorf("creating kafka client: %w", err)
	}
	defer client.Close()

	admin := kadm.NewClient(client)
	group := c.String("group")
	go reportGroupLag(ctx, admin, group, telemetryClient)

	for {
		fetches := client.PollFetches(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, e := range errs {
				fmt.Fprintf(os.Stderr, "fetch error: topic=%s partition=%d: %v\n", e.Topic, e.Partition, e.Err)
			}
		}

		byPartition := make(map[int32][]*kgo.Record)
		fetches.EachRecord(func(r *kgo.Record) {
			byPartition[r.Partition] = append(byPartition[r.Partition], r)
		})

		for partition, records := range byPartition {
			key := sink.Key{Topic: topic, Partition: partition}
			logger := snowlog.New(snowlog.TaskContext{Connector: "snowsink-harness", Topic: topic, Partition: partition})

			table := cfg.TableFor(topic)
			stage := fmt.Sprintf("%s/%s", cfg.Warehouse.StagePrefix, topic)
			pipe := fmt.Sprintf("PIPE_%s", table)

			ctxForPartition := registry.GetOrCreate(key, func() *sink.Context {
				firstOffset := records[0].Offset
				return sink.New(sink.Params{
					Topic:             topic,
					Partition:         partition,
					Table:             table,
					Stage:             stage,
					Pipe:              pipe,
					StagePrefix:       stage,
					FirstRecordOffset: firstOffset,
					Connection:        conn,
					Converter:         jsonConverter{},
					Config:            cfg,
					Clock:             clock.NewReal(),
					Logger:            logger,
					Telemetry:         telemetryClient,
				})
			})

			sinkRecords := make([]*record.SinkRecord, 0, len(records))
			for _, r := range records {
				sinkRecords = append(sinkRecords, toSinkRecord(r))
			}

			if err := ctxForPartition.InsertAll(ctx, sinkRecords); err != nil {
				fmt.Fprintf(os.Stderr, "insert failed: topic=%s partition=%d: %v\n", topic, partition, err)
				continue
			}

			offset, err := ctxForPartition.GetOffset(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "offset gate failed: topic=%s partition=%d: %v\n", topic, partition, err)
				continue
			}

			if err := client.CommitRecords(ctx, &kgo.Record{Topic: topic, Partition: partition, Offset: offset - 1}); err != nil {
				fmt.Fprintf(os.Stderr, "commit failed: topic=%s partition=%d: %v\n", topic, partition, err)
			}
		}
	}
}

func toSinkRecord(r *kgo.Record) *record.SinkRecord {
	headers := make([]record.Header, 0, len(r.Headers))
	for _, h := range r.Headers {
		headers = append(headers, record.Header{Key: h.Key, Value: h.Value})
	}
	return &record.SinkRecord{
		Topic:     r.Topic,
		Partition: r.Partition,
		Key:       r.Key,
		Value:     r.Value,
		Offset:    r.Offset,
		Timestamp: r.Timestamp,
		Headers:   headers,
	}
}
