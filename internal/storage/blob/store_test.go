package blob

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"

	"github.com/ncecere/open_voice_gateway/internal/config"
)

func TestLocalStoreRoundTripAndPrefixDelete(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s, err := New(ctx, config.AudioConfig{Storage: "local", Local: config.AudioLocalConfig{Directory: dir}})
	require.NoError(t, err)

	key := MessageKey("sess-1", "msg-1")
	require.Equal(t, "sess-1/msg-1.opus", key)
	require.NoError(t, s.Put(ctx, key, []byte("OggS"), "audio/opus"))
	require.NoError(t, s.Put(ctx, MessageKey("sess-1", "msg-2"), []byte("OggS2"), "audio/opus"))

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, []byte("OggS"), got)

	_, err = s.Get(ctx, MessageKey("sess-1", "missing"))
	require.ErrorIs(t, err, ErrNotFound)

	removed, err := s.DeletePrefix(ctx, "sess-1")
	require.NoError(t, err)
	require.True(t, removed)
	_, err = os.Stat(filepath.Join(dir, "sess-1"))
	require.True(t, os.IsNotExist(err))

	removed, err = s.DeletePrefix(ctx, "sess-1")
	require.NoError(t, err)
	require.False(t, removed)
}

func TestStoreRejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, config.AudioConfig{Local: config.AudioLocalConfig{Directory: t.TempDir()}})
	require.NoError(t, err)

	require.Error(t, s.Put(ctx, "../outside.opus", []byte("x"), "audio/opus"))
	_, err = s.DeletePrefix(ctx, "../")
	require.Error(t, err)
	_, err = s.DeletePrefix(ctx, "")
	require.Error(t, err)
}

func TestEncryptedStoreSealsAtRest(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))
	s, err := New(ctx, config.AudioConfig{Local: config.AudioLocalConfig{Directory: dir}, EncryptionKey: key})
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "a/b.opus", []byte("secret audio"), "audio/opus"))
	raw, err := os.ReadFile(filepath.Join(dir, "a", "b.opus"))
	require.NoError(t, err)
	require.True(t, isSealed(raw))
	require.NotContains(t, string(raw), "secret audio")

	got, err := s.Get(ctx, "a/b.opus")
	require.NoError(t, err)
	require.Equal(t, "secret audio", string(got))

	_, err = New(ctx, config.AudioConfig{Local: config.AudioLocalConfig{Directory: dir}, EncryptionKey: "not base64!"})
	require.Error(t, err)
}

type fakeS3 struct {
	objects map[string][]byte
	deletes int
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, _ := io.ReadAll(in.Body)
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			out.Contents = append(out.Contents, s3types.Object{Key: aws.String(k)})
		}
	}
	return out, nil
}

func (f *fakeS3) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.deletes++
	for _, id := range in.Delete.Objects {
		delete(f.objects, aws.ToString(id.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func TestS3StorePrefixesKeysAndDeletesSessionPrefix(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{}}
	s := &store{backend: &s3Store{client: fake, bucket: "audio", prefix: "voice"}}

	require.NoError(t, s.Put(ctx, MessageKey("s1", "m1"), []byte("one"), "audio/opus"))
	require.NoError(t, s.Put(ctx, MessageKey("s10", "m2"), []byte("two"), "audio/opus"))
	require.Contains(t, fake.objects, "voice/s1/m1.opus")

	got, err := s.Get(ctx, MessageKey("s1", "m1"))
	require.NoError(t, err)
	require.Equal(t, "one", string(got))

	_, err = s.Get(ctx, MessageKey("s1", "nope"))
	require.ErrorIs(t, err, ErrNotFound)

	removed, err := s.DeletePrefix(ctx, "s1")
	require.NoError(t, err)
	require.True(t, removed)
	require.Equal(t, 1, fake.deletes)
	// The trailing slash keeps sibling sessions sharing a textual prefix.
	require.Contains(t, fake.objects, "voice/s10/m2.opus")

	removed, err = s.DeletePrefix(ctx, "s1")
	require.NoError(t, err)
	require.False(t, removed)
}
