// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package s3store persists profiles in an S3 compatible object store. Each
// profile is one zstd compressed JSON object; its summary is kept in the
// object metadata so that listing does not need to download bodies.
package s3store // import "go.opentelemetry.io/request-profiler/storage/s3store"

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/minio/sha256-simd"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"go.opentelemetry.io/request-profiler/profile"
	"go.opentelemetry.io/request-profiler/storage"
)

const (
	// DefaultPrefix is prepended to all object keys.
	DefaultPrefix = "profiles/"
	// resultsPerPage defines how many results to request per page when listing objects.
	resultsPerPage = 1000
	// maxPages defines the maximum number of pages to ever retrieve when listing objects.
	maxPages = 16
	// headConcurrency limits the parallel HeadObject requests of List.
	headConcurrency = 8

	metaName     = "profile-name"
	metaStarted  = "profile-started"
	metaDuration = "profile-duration"
	metaMachine  = "profile-machine"
	metaUser     = "profile-user"
)

// API is the subset of the S3 client used by Store.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput,
		optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput,
		optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput,
		optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	s3.ListObjectsV2APIClient
}

var _ storage.Storage = (*Store)(nil)

// Store is a Storage backed by an S3 bucket.
type Store struct {
	client API
	bucket string
	prefix string
}

// New returns a Store keeping objects below prefix in bucket.
func New(client API, bucket, prefix string) (*Store, error) {
	if bucket == "" {
		return nil, errors.New("no S3 bucket configured")
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Store{client: client, bucket: bucket, prefix: prefix}, nil
}

// NewClient creates an S3 client from the default AWS configuration
// sources. A non-empty endpoint selects an S3 compatible service, such as
// MinIO, addressed with path style requests.
func NewClient(ctx context.Context, region, endpoint string) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func (s *Store) key(id uuid.UUID) string {
	return s.prefix + id.String() + storage.FileExtension
}

func (s *Store) Save(ctx context.Context, p *profile.Profile) error {
	data, err := storage.Marshal(p)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(data)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:         aws.String(s.bucket),
		Key:            aws.String(s.key(p.ID)),
		Body:           bytes.NewReader(data),
		ContentLength:  aws.Int64(int64(len(data))),
		ContentType:    aws.String("application/zstd"),
		ChecksumSHA256: aws.String(base64.StdEncoding.EncodeToString(sum[:])),
		Metadata:       encodeSummary(storage.SummaryOf(p)),
	})
	if err != nil {
		return fmt.Errorf("failed to upload profile %s: %w", p.ID, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, id uuid.UUID) (*profile.Profile, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		if isErrNoSuchKey(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to download profile %s: %w", id, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile %s: %w", id, err)
	}
	return storage.Unmarshal(data)
}

// List reads the summaries of all profiles from the object metadata.
func (s *Store) List(ctx context.Context, f storage.Filter) ([]storage.Summary, error) {
	ids, err := s.listIDs(ctx)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	summaries := make([]storage.Summary, 0, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(headConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			out, err := s.client.HeadObject(gctx, &s3.HeadObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    aws.String(s.key(id)),
			})
			if err != nil {
				if isErrNoSuchKey(err) {
					// Deleted since it was listed.
					return nil
				}
				return fmt.Errorf("failed to query profile %s: %w", id, err)
			}
			summary, err := decodeSummary(id, out.Metadata)
			if err != nil {
				log.Warnf("Skipping profile %s with invalid metadata: %v", id, err)
				return nil
			}
			mu.Lock()
			summaries = append(summaries, summary)
			mu.Unlock()
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}
	return f.Apply(summaries), nil
}

// listIDs returns the ids of all profile objects below the prefix.
func (s *Store) listIDs(ctx context.Context) ([]uuid.UUID, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(s.prefix),
		MaxKeys: aws.Int32(resultsPerPage),
	})

	var ids []uuid.UUID
	for pages := 0; paginator.HasMorePages(); pages++ {
		if pages == maxPages {
			return nil, errors.New("too many matching items in bucket")
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 request failed: %w", err)
		}
		for _, object := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(object.Key), s.prefix)
			idText, ok := strings.CutSuffix(name, storage.FileExtension)
			if !ok {
				continue
			}
			id, err := uuid.Parse(idText)
			if err != nil {
				log.Debugf("Ignoring foreign object %s", aws.ToString(object.Key))
				continue
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// encodeSummary stores s as object metadata. Values are URL escaped since
// S3 only transports US-ASCII metadata.
func encodeSummary(s storage.Summary) map[string]string {
	meta := map[string]string{
		metaName:     url.QueryEscape(s.Name),
		metaStarted:  s.Started.UTC().Format(time.RFC3339Nano),
		metaDuration: strconv.FormatFloat(s.DurationMilliseconds, 'g', -1, 64),
		metaMachine:  url.QueryEscape(s.MachineName),
	}
	if s.User != "" {
		meta[metaUser] = url.QueryEscape(s.User)
	}
	return meta
}

func decodeSummary(id uuid.UUID, meta map[string]string) (storage.Summary, error) {
	// Some S3 implementations return metadata keys with different casing.
	lower := make(map[string]string, len(meta))
	for k, v := range meta {
		lower[strings.ToLower(k)] = v
	}

	started, err := time.Parse(time.RFC3339Nano, lower[metaStarted])
	if err != nil {
		return storage.Summary{}, fmt.Errorf("invalid start time: %w", err)
	}
	duration, err := strconv.ParseFloat(lower[metaDuration], 64)
	if err != nil {
		return storage.Summary{}, fmt.Errorf("invalid duration: %w", err)
	}
	s := storage.Summary{
		ID:                   id,
		Started:              started,
		DurationMilliseconds: duration,
	}
	for key, dst := range map[string]*string{
		metaName:    &s.Name,
		metaMachine: &s.MachineName,
		metaUser:    &s.User,
	} {
		if *dst, err = url.QueryUnescape(lower[key]); err != nil {
			return storage.Summary{}, fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	return s, nil
}

func isErrNoSuchKey(err error) bool {
	// GetObject reports NoSuchKey, HeadObject only knows the HTTP status and
	// reports NotFound.
	var noSuchKey *s3types.NoSuchKey
	var notFound *s3types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}
