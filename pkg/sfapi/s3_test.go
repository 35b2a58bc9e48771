package sfapi

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string]string
	err     error
	keys    []string
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(params.Key)
	f.keys = append(f.keys, aws.ToString(params.Bucket)+"/"+key)
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewBufferString(data))}, nil
}

func TestS3ReadService_Read(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{
		"snapshots/prod/Layout/Account-Account%20Layout.json": `{"layoutSections":[]}`,
	}}
	svc := newS3ReadService(fake, "org-metadata", "snapshots/prod")

	bodies, err := svc.Read(context.Background(), "Layout", []string{"Account-Account Layout", "Missing"})
	require.NoError(t, err)
	require.Len(t, bodies, 1)
	assert.Equal(t, "Account-Account Layout", bodies[0].FullName)
	assert.Contains(t, bodies[0].Body, "layoutSections")
	assert.Equal(t, []string{
		"org-metadata/snapshots/prod/Layout/Account-Account%20Layout.json",
		"org-metadata/snapshots/prod/Layout/Missing.json",
	}, fake.keys)
}

func TestS3ReadService_Errors(t *testing.T) {
	boom := errors.New("access denied")
	svc := newS3ReadService(&fakeS3{err: boom}, "bucket", "")
	_, err := svc.Read(context.Background(), "Flow", []string{"Onboard"})
	assert.ErrorIs(t, err, boom)

	svc = newS3ReadService(&fakeS3{objects: map[string]string{"Flow/Onboard.json": "{"}}, "bucket", "")
	_, err = svc.Read(context.Background(), "Flow", []string{"Onboard"})
	assert.ErrorContains(t, err, "failed to decode Flow Onboard")
}

func TestNewS3ReadService_RequiresBucket(t *testing.T) {
	_, err := NewS3ReadService(context.Background(), S3Config{Region: "us-east-1"})
	assert.ErrorContains(t, err, "s3 bucket is required")
}
