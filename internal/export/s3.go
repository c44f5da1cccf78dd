// Package export uploads JSON snapshots of a user's history to S3.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/oklog/ulid/v2"

	"dinamifin/internal/awscfg"
	"dinamifin/internal/history"
	"dinamifin/internal/log"
)

// ObjectPutter is the subset of *s3.Client used here.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// SeriesSnapshot is one series of a snapshot.
type SeriesSnapshot struct {
	Name   string                `json:"name"`
	Start  string                `json:"start"`
	End    string                `json:"end"`
	Totals []history.MonthBucket `json:"totals,omitempty"`
	Goals  []history.GoalBucket  `json:"goals,omitempty"`
}

// Snapshot is every series of a user for one period.
type Snapshot struct {
	ID          string           `json:"id"`
	UserID      int64            `json:"user_id"`
	Period      string           `json:"period"`
	GeneratedAt time.Time        `json:"generated_at"`
	Series      []SeriesSnapshot `json:"series"`
}

// NewSnapshot packs computed results.
func NewSnapshot(userID int64, period string, results []history.Result, now time.Time) Snapshot {
	snap := Snapshot{
		ID:          ulid.Make().String(),
		UserID:      userID,
		Period:      period,
		GeneratedAt: now.UTC(),
		Series:      make([]SeriesSnapshot, 0, len(results)),
	}
	for _, r := range results {
		snap.Series = append(snap.Series, SeriesSnapshot{
			Name:   r.Series.Name,
			Start:  r.Window.Start.String(),
			End:    r.Window.End.String(),
			Totals: r.Totals,
			Goals:  r.Goals,
		})
	}
	return snap
}

// Key is the object key of snap under prefix.
func (s Snapshot) Key(prefix string) string {
	return path.Join(prefix, fmt.Sprintf("user-%d", s.UserID), s.Period, s.ID+".json")
}

type Exporter struct {
	client ObjectPutter
	bucket string
	prefix string
	logger *log.Logger
}

func NewExporter(client ObjectPutter, bucket, prefix string, logger *log.Logger) (*Exporter, error) {
	if bucket == "" {
		return nil, errors.New("export bucket is required")
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Exporter{client: client, bucket: bucket, prefix: prefix, logger: logger.WithComponent(log.ComponentExport)}, nil
}

// NewS3Exporter builds an Exporter backed by the SDK's default credential
// chain.
func NewS3Exporter(ctx context.Context, region, profile, bucket, prefix string, logger *log.Logger) (*Exporter, error) {
	cfg, err := awscfg.Load(ctx, region, profile)
	if err != nil {
		return nil, err
	}
	return NewExporter(s3.NewFromConfig(cfg), bucket, prefix, logger)
}

// Upload writes snap and returns its s3:// URI.
func (e *Exporter) Upload(ctx context.Context, snap Snapshot) (string, error) {
	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	key := snap.Key(e.prefix)

	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"user-id": fmt.Sprint(snap.UserID),
			"period":  snap.Period,
		},
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", e.bucket, key, err)
	}

	uri := fmt.Sprintf("s3://%s/%s", e.bucket, key)
	e.logger.InfoContext(ctx, "Snapshot exported", log.FieldUserID, snap.UserID, log.FieldPeriod, snap.Period, "uri", uri, "bytes", len(body))
	return uri, nil
}
