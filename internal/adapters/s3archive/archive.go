// Package s3archive stores terminally rejected batch files in S3 before
// they are dropped, so a malformed payload can still be diagnosed later.
package s3archive

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const (
	putTimeout  = 5 * time.Second
	putAttempts = 3
)

// Config holds the archive destination.
type Config struct {
	Region string
	Bucket string
	Prefix string
}

// Archiver implements ports.Archiver with S3 PutObject.
type Archiver struct {
	cfg    Config
	client *s3.Client
}

// New loads the default AWS configuration and creates an Archiver.
func New(ctx context.Context, cfg Config) (*Archiver, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Retries are handled here, with the file handle rewound between
		// attempts; the SDK retryer cannot rewind for us.
		o.RetryMaxAttempts = 0
	})
	return &Archiver{cfg: cfg, client: client}, nil
}

// Archive uploads the file at filePath under a date-bucketed, collision-free
// key derived from name. The source file is only read.
func (a *Archiver) Archive(filePath, name string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open %s: %w", filePath, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", filePath, err)
	}

	key := path.Join(
		a.cfg.Prefix,
		time.Now().UTC().Format("2006-01-02"),
		uuid.NewString()+"-"+name,
	)

	var lastErr error
	backoff := 200 * time.Millisecond
	for attempt := 1; attempt <= putAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), putTimeout)
		_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(a.cfg.Bucket),
			Key:           aws.String(key),
			Body:          f,
			ContentLength: aws.Int64(info.Size()),
			ContentType:   aws.String("application/json"),
		})
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if _, err := f.Seek(0, 0); err != nil {
			return fmt.Errorf("rewind %s: %w", filePath, err)
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	return fmt.Errorf("archive %s: %w", key, lastErr)
}
