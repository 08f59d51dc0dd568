package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	json "github.com/goccy/go-json"

	"github.com/gurre/sitedeploy-go/state/config"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

const invalidationXML = `<?xml version="1.0" encoding="UTF-8"?>
<Invalidation xmlns="http://cloudfront.amazonaws.com/doc/2020-05-31/"><Id>I1TESTID</Id><Status>InProgress</Status><CreateTime>2026-10-15T08:00:00Z</CreateTime><InvalidationBatch><Paths><Quantity>1</Quantity><Items><Path>/*</Path></Items></Paths><CallerReference>req-e2e</CallerReference></InvalidationBatch></Invalidation>`

// fakeAWS records the S3 puts, CloudFront invalidations and callbacks a
// handler issues.
type fakeAWS struct {
	mu            sync.Mutex
	puts          []string
	types         map[string]string
	invalidations []string
	callbacks     []map[string]interface{}
	denyPuts      bool

	s3, cf, cb *httptest.Server
}

func newFakeAWS(t *testing.T) *fakeAWS {
	t.Helper()
	f := &fakeAWS{types: map[string]string{}}
	f.s3 = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		f.mu.Lock()
		deny := f.denyPuts
		if !deny {
			f.puts = append(f.puts, r.URL.Path)
			f.types[r.URL.Path] = r.Header.Get("Content-Type")
		}
		f.mu.Unlock()
		if deny {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`<Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`))
			return
		}
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	}))
	f.cf = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.invalidations = append(f.invalidations, r.URL.Path+" "+string(body))
		f.mu.Unlock()
		w.Header().Set("Content-Type", "text/xml")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(invalidationXML))
	}))
	f.cb = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var m map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&m)
		f.mu.Lock()
		f.callbacks = append(f.callbacks, m)
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(func() {
		f.s3.Close()
		f.cf.Close()
		f.cb.Close()
	})
	return f
}

func writeSite(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("content "+n), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func testAWSConfig() aws.Config {
	return aws.Config{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider("AKID", "SECRET", ""),
	}
}

func createEvent(responseURL string) cfn.Event {
	return cfn.Event{
		RequestType:       cfn.RequestCreate,
		RequestID:         "req-e2e",
		ResponseURL:       responseURL,
		ResourceType:      "Custom::SiteDeploy",
		LogicalResourceID: "SiteDeploy",
		StackID:           "arn:aws:cloudformation:us-east-1:123456789012:stack/site/guid",
		ResourceProperties: map[string]interface{}{
			"ServiceToken":      "arn:aws:lambda:us-east-1:123456789012:function:deploy",
			"ObjectStoreId":     "site-bucket",
			"CdnDistributionId": "E2DIST",
		},
	}
}

// TestNew_EndToEndCreate drives a Create event through the fully wired
// handler against fake S3, CloudFront and callback endpoints. It checks the
// deployer's own artifacts are not uploaded, the entry asset is stored last
// with its content type, one invalidation is keyed by the request id, and one
// SUCCESS response carries the configured content hash.
func TestNew_EndToEndCreate(t *testing.T) {
	f := newFakeAWS(t)
	dir := t.TempDir()
	writeSite(t, dir, "style.css", "app.js", "index.html", "bootstrap", "sitedeploy.yml")

	cfg := config.Default()
	cfg.Dir = dir
	cfg.ContentHash = "hash-e2e"
	cfg.S3EndpointOverride = f.s3.URL
	cfg.CloudFrontEndpointOverride = f.cf.URL

	h := New(cfg, testAWSConfig(), "stream-1", discard)
	if err := h.Handle(context.Background(), createEvent(f.cb.URL+"/cb")); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(f.puts) != 3 {
		t.Fatalf("puts = %v, want 3", f.puts)
	}
	if f.puts[2] != "/site-bucket/index.html" {
		t.Errorf("last put = %q, want the entry asset", f.puts[2])
	}
	first := append([]string(nil), f.puts[:2]...)
	sort.Strings(first)
	if first[0] != "/site-bucket/app.js" || first[1] != "/site-bucket/style.css" {
		t.Errorf("non-entry puts = %v", first)
	}
	if f.types["/site-bucket/style.css"] != "text/css" || f.types["/site-bucket/index.html"] != "text/html" {
		t.Errorf("content types = %v", f.types)
	}

	if len(f.invalidations) != 1 {
		t.Fatalf("invalidations = %v", f.invalidations)
	}
	if inv := f.invalidations[0]; !strings.Contains(inv, "/distribution/E2DIST/invalidation") || !strings.Contains(inv, "<CallerReference>req-e2e</CallerReference>") {
		t.Errorf("invalidation = %s", inv)
	}

	if len(f.callbacks) != 1 {
		t.Fatalf("callbacks = %d, want 1", len(f.callbacks))
	}
	cb := f.callbacks[0]
	if cb["Status"] != "SUCCESS" || cb["PhysicalResourceId"] != "hash-e2e" {
		t.Errorf("callback = %v", cb)
	}
	if cb["Reason"] != "See the details in CloudWatch Log Stream: stream-1" {
		t.Errorf("Reason = %v", cb["Reason"])
	}
}

// TestNew_UploadFailureReportsFailed verifies an S3 failure skips the
// invalidation and is reported as FAILED.
func TestNew_UploadFailureReportsFailed(t *testing.T) {
	f := newFakeAWS(t)
	f.denyPuts = true
	dir := t.TempDir()
	writeSite(t, dir, "app.js", "index.html")

	cfg := config.Default()
	cfg.Dir = dir
	cfg.S3EndpointOverride = f.s3.URL
	cfg.CloudFrontEndpointOverride = f.cf.URL

	h := New(cfg, testAWSConfig(), "stream-1", discard)
	if err := h.Handle(context.Background(), createEvent(f.cb.URL)); err != nil {
		t.Fatal(err)
	}
	if len(f.invalidations) != 0 {
		t.Errorf("invalidation issued after failed upload: %v", f.invalidations)
	}
	if len(f.callbacks) != 1 || f.callbacks[0]["Status"] != "FAILED" {
		t.Errorf("callbacks = %v", f.callbacks)
	}
}

// TestNewFailing verifies a handler built after a startup failure answers
// Create with FAILED and Delete with SUCCESS.
func TestNewFailing(t *testing.T) {
	f := newFakeAWS(t)
	h := NewFailing(errors.New("load config: bad yaml"), "stream-1", discard)

	ev := createEvent(f.cb.URL)
	if err := h.Handle(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	ev.RequestType = cfn.RequestDelete
	if err := h.Handle(context.Background(), ev); err != nil {
		t.Fatal(err)
	}

	if len(f.callbacks) != 2 {
		t.Fatalf("callbacks = %v", f.callbacks)
	}
	if f.callbacks[0]["Status"] != "FAILED" || !strings.Contains(f.callbacks[0]["Reason"].(string), "bad yaml") {
		t.Errorf("create callback = %v", f.callbacks[0])
	}
	if f.callbacks[1]["Status"] != "SUCCESS" {
		t.Errorf("delete callback = %v", f.callbacks[1])
	}
	if len(f.puts) != 0 {
		t.Errorf("puts = %v", f.puts)
	}
}

// TestLoadConfig_Layering verifies the precedence defaults < file < env and
// that the deploy directory falls back to the executable's directory.
func TestLoadConfig_Layering(t *testing.T) {
	exeDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(exeDir, "sitedeploy.yml"), []byte("index_filename: app.html\ncontent_hash: from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	env := map[string]string{"SITEDEPLOY_CONTENT_HASH": "from-env"}

	cfg, err := LoadConfig(Env{Getenv: func(k string) string { return env[k] }, ExeDir: exeDir})
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.IndexFilename != "app.html" {
		t.Errorf("IndexFilename = %q", cfg.IndexFilename)
	}
	if cfg.ContentHash != "from-env" {
		t.Errorf("ContentHash = %q", cfg.ContentHash)
	}
	if cfg.Dir != exeDir {
		t.Errorf("Dir = %q, want %q", cfg.Dir, exeDir)
	}
}

// TestLoadConfig_BadFile verifies a malformed config is an error.
func TestLoadConfig_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yml")
	if err := os.WriteFile(path, []byte("concurrency: [\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	env := map[string]string{"SITEDEPLOY_CONFIG": path}
	if _, err := LoadConfig(Env{Getenv: func(k string) string { return env[k] }, ExeDir: t.TempDir()}); err == nil {
		t.Fatal("expected error")
	}
}
