package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type fakeObject struct {
	data        []byte
	contentType string
}

type fakeS3 struct {
	objects map[string]fakeObject
	err     error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string]fakeObject{}}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	obj, ok := f.objects[*in.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(obj.data)),
		ContentType:   aws.String(obj.contentType),
		ContentLength: aws.Int64(int64(len(obj.data))),
	}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = fakeObject{data: data, contentType: *in.ContentType}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func newTestStore(t *testing.T, f *fakeS3) *Store {
	t.Helper()
	s, err := newStore(f, Options{Bucket: "media-test", Prefix: "media"})
	if err != nil {
		t.Fatalf("newStore: %v", err)
	}
	s.newID = func() string { return "fixed-id" }
	return s
}

func TestPutAndGet(t *testing.T) {
	f := newFakeS3()
	s := newTestStore(t, f)
	ctx := context.Background()

	key, err := s.Put(ctx, "lesson1.MP3", "audio/mpeg", strings.NewReader("audio-bytes"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if key != "fixed-id.mp3" {
		t.Fatalf("expected generated key with lowered extension, got %q", key)
	}
	if _, ok := f.objects["media/fixed-id.mp3"]; !ok {
		t.Fatalf("expected prefixed object key, have %v", f.objects)
	}

	obj, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(data) != "audio-bytes" || obj.ContentType != "audio/mpeg" || obj.Size != 11 {
		t.Fatalf("unexpected object: %q %q %d", data, obj.ContentType, obj.Size)
	}
}

func TestGetMissingKey(t *testing.T) {
	s := newTestStore(t, newFakeS3())
	_, err := s.Get(context.Background(), "nope.png")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	f := newFakeS3()
	s := newTestStore(t, f)
	ctx := context.Background()

	key, err := s.Put(ctx, "img.png", "image/png", strings.NewReader("png"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete of missing object should succeed: %v", err)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := newStore(newFakeS3(), Options{}); err == nil {
		t.Fatal("expected error for missing bucket")
	}
}

func TestErrorsAreWrapped(t *testing.T) {
	f := newFakeS3()
	f.err = errors.New("throttled")
	s := newTestStore(t, f)

	if _, err := s.Put(context.Background(), "a.png", "image/png", strings.NewReader("x")); err == nil {
		t.Fatal("expected put error")
	}
	if _, err := s.Get(context.Background(), "a.png"); err == nil {
		t.Fatal("expected get error")
	}
}
