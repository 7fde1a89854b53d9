package rulebook

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/liamcoop/shelflife/shelflife"
)

// fakeS3 serves GET requests for path-style /bucket/key URLs from memory
type fakeS3 struct {
	objects map[string][]byte
	paths   []string
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.paths = append(f.paths, req.URL.Path)
	if req.Method != http.MethodGet {
		return &http.Response{StatusCode: http.StatusNotImplemented, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}, nil
	}
	body, ok := f.objects[strings.TrimPrefix(req.URL.Path, "/")]
	if !ok {
		return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}, nil
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(body)),
		Header:     http.Header{"Content-Type": {"application/toml"}},
	}, nil
}

func newFakeS3Client(t *testing.T, rt http.RoundTripper) *s3.Client {
	t.Helper()
	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	if err != nil {
		t.Fatalf("LoadDefaultConfig() failed: %v", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String("https://s3.test.local")
		o.HTTPClient = &http.Client{Transport: rt}
		o.UsePathStyle = true
	})
}

func encodedDefaultBook(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := EncodeTOML(&buf, shelflife.DefaultRuleBook()); err != nil {
		t.Fatalf("EncodeTOML() failed: %v", err)
	}
	return buf.Bytes()
}

// TestFileSource verifies reading an artifact from disk
func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.toml")
	if err := os.WriteFile(path, encodedDefaultBook(t), 0o600); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	src := FileSource{Path: path}
	book, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	assertSameRules(t, "domestic", book.Domestic, shelflife.DomesticRules())
	if src.String() != "file://"+path {
		t.Errorf("String() = %q", src.String())
	}
}

// TestFileSourceMissing verifies a missing file is an error
func TestFileSourceMissing(t *testing.T) {
	src := FileSource{Path: filepath.Join(t.TempDir(), "absent.toml")}
	if _, err := src.Fetch(context.Background()); err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

// TestS3Source verifies fetching an artifact through the S3 client
func TestS3Source(t *testing.T) {
	rt := &fakeS3{objects: map[string][]byte{
		"rulebooks/tables/v2.toml": encodedDefaultBook(t),
	}}
	src := NewS3SourceWithClient(newFakeS3Client(t, rt), "rulebooks", "tables/v2.toml")

	book, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	assertSameRules(t, "import", book.Import, shelflife.ImportRules())

	if len(rt.paths) != 1 || rt.paths[0] != "/rulebooks/tables/v2.toml" {
		t.Errorf("requested paths = %v", rt.paths)
	}
	if src.String() != "s3://rulebooks/tables/v2.toml" {
		t.Errorf("String() = %q", src.String())
	}
}

// TestS3SourceErrors verifies missing objects and bad artifacts are reported
func TestS3SourceErrors(t *testing.T) {
	rt := &fakeS3{objects: map[string][]byte{
		"rulebooks/broken.toml": []byte("[[domestic]\n"),
	}}
	client := newFakeS3Client(t, rt)

	testCases := []struct {
		name    string
		key     string
		wantMsg string
	}{
		{"missing object", "absent.toml", "failed to get s3://rulebooks/absent.toml"},
		{"undecodable", "broken.toml", "failed to decode rule book"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewS3SourceWithClient(client, "rulebooks", tc.key).Fetch(context.Background())
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Errorf("expected error containing %q, got: %v", tc.wantMsg, err)
			}
		})
	}
}

// TestNewS3SourceRequiresLocation verifies bucket and key are mandatory
func TestNewS3SourceRequiresLocation(t *testing.T) {
	if _, err := NewS3Source(context.Background(), S3Config{Bucket: "b"}); err == nil {
		t.Error("expected error without key, got nil")
	}
}
