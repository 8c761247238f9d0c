// Package s3 archives history events as JSON objects in an S3-compatible
// bucket (AWS S3 or MinIO).
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/loykin/curator/internal/history"
)

// PutObjectAPI is the part of *s3.Client the sink needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config holds the bucket location and optional static credentials. Empty
// credentials fall back to the default AWS chain.
type Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string // optional; custom endpoint such as MinIO
	PathStyle       bool
	AccessKeyID     string
	SecretAccessKey string
}

// ParseDSN reads s3://bucket/prefix?region=..&endpoint=..&path_style=true.
func ParseDSN(dsn string) (Config, error) {
	u, err := url.Parse(strings.TrimSpace(dsn))
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return Config{}, fmt.Errorf("invalid s3 DSN: %w", err)
	}
	if !strings.EqualFold(u.Scheme, "s3") {
		return Config{}, fmt.Errorf("not an s3 DSN: scheme %q", u.Scheme)
	}
	q := u.Query()
	cfg := Config{
		Bucket:   u.Host,
		Prefix:   strings.Trim(u.Path, "/"),
		Region:   q.Get("region"),
		Endpoint: q.Get("endpoint"),
	}
	if v := q.Get("path_style"); v != "" {
		cfg.PathStyle, err = strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("path_style: %w", err)
		}
	}
	if cfg.Bucket == "" {
		return Config{}, fmt.Errorf("s3 bucket required")
	}
	return cfg, nil
}

type Sink struct {
	client PutObjectAPI
	bucket string
	prefix string
}

// New builds an S3 client from cfg.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewWithClient uses an existing client.
func NewWithClient(client PutObjectAPI, bucket, prefix string) *Sink {
	return &Sink{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Key is prefix/kind/YYYY/MM/DD/<resource id>-<event id>.json.
func (s *Sink) Key(e history.Event) string {
	t := e.OccurredAt.UTC()
	name := fmt.Sprintf("%d-%s.json", e.ResourceID, e.ID)
	return path.Join(s.prefix, strings.ToLower(e.Kind), t.Format("2006/01/02"), name)
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.Key(e)),
		Body:        bytes.NewReader(b),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"event": string(e.Type),
			"kind":  e.Kind,
		},
	})
	if err != nil {
		return fmt.Errorf("put history object: %w", err)
	}
	return nil
}
