package s3

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/curator/internal/history"
)

type fakeS3 struct {
	inputs []*s3.PutObjectInput
	bodies []string
	err    error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, _ := io.ReadAll(in.Body)
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, string(b))
	return &s3.PutObjectOutput{}, nil
}

func TestSink_Send(t *testing.T) {
	fake := &fakeS3{}
	sink := NewWithClient(fake, "audit", "/curator/")

	ev := history.NewEvent(history.EventUpdated, "Book", 12, "alice", nil)
	ev.OccurredAt = time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	require.NoError(t, sink.Send(context.Background(), ev))

	require.Len(t, fake.inputs, 1)
	in := fake.inputs[0]
	assert.Equal(t, "audit", aws.ToString(in.Bucket))
	assert.Equal(t, "curator/book/2026/03/09/12-"+ev.ID+".json", aws.ToString(in.Key))
	assert.Equal(t, "application/json", aws.ToString(in.ContentType))
	assert.Equal(t, "updated", in.Metadata["event"])
	assert.Contains(t, fake.bodies[0], `"actor":"alice"`)
}

func TestSink_KeyWithoutPrefix(t *testing.T) {
	sink := NewWithClient(&fakeS3{}, "b", "")
	ev := history.Event{ID: "x", Kind: "Employee", ResourceID: 1, OccurredAt: time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC)}
	assert.Equal(t, "employee/2025/12/31/1-x.json", sink.Key(ev))
}

func TestSink_SendError(t *testing.T) {
	sink := NewWithClient(&fakeS3{err: errors.New("denied")}, "b", "")
	err := sink.Send(context.Background(), history.NewEvent(history.EventCreated, "Book", 1, "", nil))
	assert.ErrorContains(t, err, "denied")
}

func TestParseDSN(t *testing.T) {
	cfg, err := ParseDSN("s3://audit/curator/events?region=eu-west-1&endpoint=http://minio:9000&path_style=true")
	require.NoError(t, err)
	assert.Equal(t, Config{
		Bucket: "audit", Prefix: "curator/events", Region: "eu-west-1",
		Endpoint: "http://minio:9000", PathStyle: true,
	}, cfg)

	_, err = ParseDSN("s3:///nobucket")
	assert.Error(t, err)
	_, err = ParseDSN("s3://b?path_style=maybe")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)

	sink, err := New(context.Background(), Config{
		Bucket: "b", Endpoint: "http://127.0.0.1:9000", PathStyle: true,
		AccessKeyID: "key", SecretAccessKey: "secret",
	})
	require.NoError(t, err)
	assert.NotNil(t, sink)
}
