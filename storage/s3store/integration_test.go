// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

//go:build integration

package s3store

import (
	"context"
	"net"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"go.opentelemetry.io/request-profiler/storage"
)

const (
	minioUser     = "profiler"
	minioPassword = "profiler-secret"
)

func startMinio(ctx context.Context, t *testing.T) string {
	cont, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "minio/minio:latest",
			Cmd:          []string{"server", "/data"},
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     minioUser,
				"MINIO_ROOT_PASSWORD": minioPassword,
			},
			WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = cont.Terminate(context.Background())
	})

	host, err := cont.Host(ctx)
	require.NoError(t, err)
	port, err := cont.MappedPort(ctx, "9000")
	require.NoError(t, err)
	return "http://" + net.JoinHostPort(host, port.Port())
}

func TestMinio(t *testing.T) {
	ctx := context.Background()
	endpoint := startMinio(ctx, t)

	t.Setenv("AWS_ACCESS_KEY_ID", minioUser)
	t.Setenv("AWS_SECRET_ACCESS_KEY", minioPassword)
	client, err := NewClient(ctx, "us-east-1", endpoint)
	require.NoError(t, err)

	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String("profiles")})
	require.NoError(t, err)

	s, err := New(client, "profiles", DefaultPrefix)
	require.NoError(t, err)

	first, second := newProfile(1, "GET /a b"), newProfile(2, "/ü")
	require.NoError(t, s.Save(ctx, first))
	require.NoError(t, s.Save(ctx, second))

	got, err := s.Load(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Name, got.Name)

	_, err = s.Load(ctx, uuid.New())
	require.ErrorIs(t, err, storage.ErrNotFound)

	list, err := s.List(ctx, storage.Filter{Order: storage.Ascending})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, storage.SummaryOf(first), list[0])
	assert.Equal(t, storage.SummaryOf(second), list[1])
}
