// Package s3stage implements warehouse.Connection against an S3-
// compatible bucket used as stage storage, wiring the AWS SDK v2
// directly rather than through an intermediate dataset abstraction:
// stage files have no Hive partition keys, just an offset-range
// filename, so a plain bucket/key client is all this needs.
package s3stage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/pithecene-io/snowsink/ingest"
	"github.com/pithecene-io/snowsink/snowerr"
	"github.com/pithecene-io/snowsink/telemetry"
	"github.com/pithecene-io/snowsink/warehouse"
)

// Config configures the S3-backed stage connection.
type Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	UsePathStyle bool

	// IngestEndpoint is the base URL of the asynchronous ingestion
	// backend (a Snowpipe-compatible REST ingest/history API).
	IngestEndpoint string

	// ConnectorName identifies the owning connector for logging.
	ConnectorName string

	Telemetry telemetry.Client
}

func (c Config) validate() error {
	if c.Bucket == "" {
		return errors.New("s3stage: bucket is required")
	}
	return nil
}

// Connection is an S3-backed warehouse.Connection. Table/stage/pipe
// existence and compatibility are modeled as S3 prefixes plus a marker
// object, since this backend has no warehouse catalog of its own to
// query — a real Snowflake-backed Connection would delegate those
// checks to SQL DESCRIBE/SHOW statements instead.
type Connection struct {
	client    *s3.Client
	cfg       Config
	telemetry telemetry.Client

	// ingestServicesMu guards ingestServices and closed: one Connection
	// is shared across every partition's sink.Context, each running its
	// own cleaner goroutine alongside the consumer's own calls, so the
	// lazy-create path in IngestService and CreatePipe races without it.
	ingestServicesMu sync.Mutex
	ingestServices   map[string]ingest.Service
	closed           bool
}

// New builds a Connection using the AWS SDK's default credential chain
// (env vars, shared config, IAM role).
func New(ctx context.Context, cfg Config) (*Connection, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3stage: loading AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = &endpoint })
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}

	tc := cfg.Telemetry
	if tc == nil {
		tc = telemetry.Noop{}
	}

	return &Connection{
		client:         s3.NewFromConfig(awsCfg, s3Opts...),
		cfg:            cfg,
		telemetry:      tc,
		ingestServices: make(map[string]ingest.Service),
	}, nil
}

func markerKey(resource string) string { return resource + "/.marker" }

func (c *Connection) TableExists(ctx context.Context, table string) (bool, error) {
	return c.objectExists(ctx, markerKey("tables/"+table))
}

func (c *Connection) StageExists(ctx context.Context, stage string) (bool, error) {
	return c.objectExists(ctx, markerKey(stage))
}

func (c *Connection) PipeExists(ctx context.Context, pipe string) (bool, error) {
	return c.objectExists(ctx, markerKey("pipes/"+pipe))
}

// IsTableCompatible, IsStageCompatible and IsPipeCompatible always
// report compatible for an existing marker: this backend does not
// carry a schema for stage/pipe objects to drift against.
func (c *Connection) IsTableCompatible(ctx context.Context, table string) (bool, error) { return true, nil }
func (c *Connection) IsStageCompatible(ctx context.Context, stage string) (bool, error) { return true, nil }
func (c *Connection) IsPipeCompatible(ctx context.Context, pipe, stage, table string) (bool, error) {
	return true, nil
}

func (c *Connection) CreateTable(ctx context.Context, table string) error {
	return c.putMarker(ctx, markerKey("tables/"+table))
}

func (c *Connection) CreateStage(ctx context.Context, stage string) error {
	return c.putMarker(ctx, markerKey(stage))
}

func (c *Connection) CreatePipe(ctx context.Context, pipe, stage, table string) error {
	if err := c.putMarker(ctx, markerKey("pipes/"+pipe)); err != nil {
		return err
	}
	c.ingestServicesMu.Lock()
	c.ingestServices[pipe] = newHTTPIngestService(c.cfg.IngestEndpoint, pipe)
	c.ingestServicesMu.Unlock()
	return nil
}

func (c *Connection) ListStage(ctx context.Context, stage, prefix string) ([]string, error) {
	fullPrefix := strings.TrimSuffix(stage, "/") + "/" + strings.TrimPrefix(prefix, "/")

	var names []string
	var continuationToken *string
	for {
		out, err := c.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &c.cfg.Bucket,
			Prefix:            &fullPrefix,
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return nil, snowerr.Classify(err, "list_stage", stage)
		}
		for _, obj := range out.Contents {
			if obj.Key == nil || strings.HasSuffix(*obj.Key, ".marker") {
				continue
			}
			names = append(names, *obj.Key)
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		continuationToken = out.NextContinuationToken
	}
	return names, nil
}

func (c *Connection) PutToStage(ctx context.Context, stage, filename string, content []byte) error {
	key := strings.TrimSuffix(stage, "/") + "/" + strings.TrimPrefix(filename, "/")
	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &c.cfg.Bucket,
		Key:    &key,
		Body:   bytes.NewReader(content),
	})
	if err != nil {
		return snowerr.Classify(err, "put_to_stage", stage)
	}
	c.telemetry.IncCounter("warehouse.stage_put", 1, map[string]string{"stage": stage})
	return nil
}

func (c *Connection) PutToTableStage(ctx context.Context, table, filename string, content []byte) error {
	key := "tables/" + table + "/stage/" + strings.TrimPrefix(filename, "/")
	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &c.cfg.Bucket,
		Key:    &key,
		Body:   bytes.NewReader(content),
	})
	if err != nil {
		return snowerr.Classify(err, "put_to_table_stage", table)
	}
	c.telemetry.IncCounter("warehouse.table_stage_put", 1, map[string]string{"table": table})
	return nil
}

func (c *Connection) PurgeStage(ctx context.Context, stage string, files []string) error {
	if len(files) == 0 {
		return nil
	}
	objects := make([]types.ObjectIdentifier, 0, len(files))
	for _, f := range files {
		key := f
		objects = append(objects, types.ObjectIdentifier{Key: &key})
	}
	_, err := c.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: &c.cfg.Bucket,
		Delete: &types.Delete{Objects: objects},
	})
	if err != nil {
		return snowerr.Classify(err, "purge_stage", stage)
	}
	c.telemetry.IncCounter("warehouse.stage_purge", int64(len(files)), map[string]string{"stage": stage})
	return nil
}

func (c *Connection) MoveToTableStage(ctx context.Context, table, stage string, files []string) error {
	dest := "tables/" + table + "/stage"
	for _, f := range files {
		src := c.cfg.Bucket + "/" + f
		destKey := dest + "/" + f[strings.LastIndex(f, "/")+1:]
		if _, err := c.client.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:     &c.cfg.Bucket,
			CopySource: &src,
			Key:        &destKey,
		}); err != nil {
			return snowerr.Classify(err, "move_to_table_stage", table)
		}
	}
	return c.PurgeStage(ctx, stage, files)
}

func (c *Connection) IngestService(pipe string) ingest.Service {
	c.ingestServicesMu.Lock()
	defer c.ingestServicesMu.Unlock()
	svc, ok := c.ingestServices[pipe]
	if !ok {
		svc = newHTTPIngestService(c.cfg.IngestEndpoint, pipe)
		c.ingestServices[pipe] = svc
	}
	return svc
}

func (c *Connection) Telemetry() telemetry.Client { return c.telemetry }
func (c *Connection) ConnectorName() string       { return c.cfg.ConnectorName }

func (c *Connection) IsClosed() bool {
	c.ingestServicesMu.Lock()
	defer c.ingestServicesMu.Unlock()
	return c.closed
}

func (c *Connection) Close() error {
	c.ingestServicesMu.Lock()
	defer c.ingestServicesMu.Unlock()
	c.closed = true
	for _, svc := range c.ingestServices {
		_ = svc.Close()
	}
	return nil
}

func (c *Connection) objectExists(ctx context.Context, key string) (bool, error) {
	_, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &c.cfg.Bucket, Key: &key})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	classified := snowerr.Classify(err, "head_object", key)
	if errors.Is(classified, snowerr.ErrNotFound) {
		return false, nil
	}
	return false, classified
}

func (c *Connection) putMarker(ctx context.Context, key string) error {
	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &c.cfg.Bucket,
		Key:    &key,
		Body:   bytes.NewReader([]byte("1")),
	})
	if err != nil {
		return snowerr.Classify(err, "put_marker", key)
	}
	return nil
}

var _ warehouse.Connection = (*Connection)(nil)
