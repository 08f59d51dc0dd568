package localcli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/gurre/sitedeploy-go/adaptor/configloader"
	"github.com/gurre/sitedeploy-go/adaptor/stackresolve"
	"github.com/gurre/sitedeploy-go/logic/uploadplan"
	"github.com/gurre/sitedeploy-go/state/config"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeEndpoints serves S3 puts and CloudFront invalidations.
type fakeEndpoints struct {
	mu   sync.Mutex
	puts []string
	refs []string

	s3, cf *httptest.Server
}

var callerRefRe = regexp.MustCompile(`<CallerReference>([^<]*)</CallerReference>`)

func newFakeEndpoints(t *testing.T) *fakeEndpoints {
	t.Helper()
	f := &fakeEndpoints{}
	f.s3 = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		f.mu.Lock()
		f.puts = append(f.puts, r.URL.Path)
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	f.cf = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		ref := ""
		if m := callerRefRe.FindSubmatch(body); m != nil {
			ref = string(m[1])
		}
		f.mu.Lock()
		f.refs = append(f.refs, ref)
		f.mu.Unlock()
		w.Header().Set("Content-Type", "text/xml")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Invalidation xmlns="http://cloudfront.amazonaws.com/doc/2020-05-31/"><Id>ICLI</Id><Status>InProgress</Status><CreateTime>2026-10-15T08:00:00Z</CreateTime><InvalidationBatch><Paths><Quantity>1</Quantity><Items><Path>/*</Path></Items></Paths><CallerReference>` + ref + `</CallerReference></InvalidationBatch></Invalidation>`))
	}))
	t.Cleanup(func() {
		f.s3.Close()
		f.cf.Close()
	})
	return f
}

func (f *fakeEndpoints) config(dir string) config.Deploy {
	cfg := config.Default()
	cfg.Dir = dir
	cfg.S3EndpointOverride = f.s3.URL
	cfg.CloudFrontEndpointOverride = f.cf.URL
	return cfg
}

func testAWSConfig() aws.Config {
	return aws.Config{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider("AKID", "SECRET", ""),
	}
}

func writeSite(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("body of "+n), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

type fakeResolver struct {
	res   stackresolve.Resources
	err   error
	calls int
}

func (f *fakeResolver) Resolve(context.Context, string) (stackresolve.Resources, error) {
	f.calls++
	return f.res, f.err
}

// TestDeploy_IncompleteTargetIsNoop verifies that without both ids and
// without a stack the CLI exits cleanly before touching AWS, so build-only
// pipelines can run the same command.
func TestDeploy_IncompleteTargetIsNoop(t *testing.T) {
	dir := t.TempDir()
	writeSite(t, dir, "index.html")

	for _, opts := range []Options{
		{Dir: dir},
		{Dir: dir, ObjectStore: "bucket1"},
		{Dir: dir, CDNDistribution: "dist1"},
	} {
		out, err := Deploy(context.Background(), opts, discard)
		if err != nil {
			t.Fatalf("Deploy(%+v): %v", opts, err)
		}
		if !out.Skipped {
			t.Errorf("Deploy(%+v) should be skipped", opts)
		}
	}
}

// TestRun_UploadsAndInvalidates verifies a full CLI deploy: every asset is
// stored with the entry last, the manifest is not uploaded, and the
// invalidation uses a generated cli- request id.
func TestRun_UploadsAndInvalidates(t *testing.T) {
	f := newFakeEndpoints(t)
	dir := t.TempDir()
	writeSite(t, dir, "style.css", "app.js", "index.html", "sitedeploy.yml")

	var progress bytes.Buffer
	opts := Options{Dir: dir, ObjectStore: "bucket1", CDNDistribution: "dist1", Progress: true, ProgressOut: &progress}
	out, err := run(context.Background(), opts, f.config(dir), testAWSConfig(), nil, discard)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(f.puts) != 3 || f.puts[2] != "/bucket1/index.html" {
		t.Errorf("puts = %v", f.puts)
	}
	if len(f.refs) != 1 || !strings.HasPrefix(f.refs[0], "cli-") {
		t.Errorf("caller references = %v", f.refs)
	}
	if out.InvalidationID != "ICLI" || len(out.Uploaded) != 3 {
		t.Errorf("outcome = %+v", out)
	}
	if progress.Len() == 0 {
		t.Error("progress bar wrote nothing")
	}
}

// TestRun_SeparateRunsUseSeparateReferences verifies two CLI runs never
// share a caller reference, otherwise CloudFront would treat the second
// invalidation as a duplicate of the first.
func TestRun_SeparateRunsUseSeparateReferences(t *testing.T) {
	f := newFakeEndpoints(t)
	dir := t.TempDir()
	writeSite(t, dir, "index.html")
	opts := Options{Dir: dir, ObjectStore: "bucket1", CDNDistribution: "dist1"}

	for i := 0; i < 2; i++ {
		if _, err := run(context.Background(), opts, f.config(dir), testAWSConfig(), nil, discard); err != nil {
			t.Fatal(err)
		}
	}
	if len(f.refs) != 2 || f.refs[0] == f.refs[1] {
		t.Errorf("caller references = %v", f.refs)
	}
}

// TestRun_StackFillsMissingIDs verifies ids missing from the flags are taken
// from the stack while explicit flags win.
func TestRun_StackFillsMissingIDs(t *testing.T) {
	f := newFakeEndpoints(t)
	dir := t.TempDir()
	writeSite(t, dir, "index.html")
	resolver := &fakeResolver{res: stackresolve.Resources{BucketName: "stack-bucket", DistributionID: "stack-dist"}}

	opts := Options{Dir: dir, ObjectStore: "flag-bucket", Stack: "site"}
	if _, err := run(context.Background(), opts, f.config(dir), testAWSConfig(), resolver, discard); err != nil {
		t.Fatal(err)
	}
	if resolver.calls != 1 {
		t.Errorf("resolver calls = %d", resolver.calls)
	}
	if len(f.puts) != 1 || f.puts[0] != "/flag-bucket/index.html" {
		t.Errorf("puts = %v, want the flag bucket", f.puts)
	}
	if len(f.refs) != 1 {
		t.Errorf("invalidations = %v", f.refs)
	}
}

// TestRun_StackWithoutDistributionIsNoop verifies a stack that lacks a
// distribution deploys nothing rather than uploading without invalidating.
func TestRun_StackWithoutDistributionIsNoop(t *testing.T) {
	f := newFakeEndpoints(t)
	dir := t.TempDir()
	writeSite(t, dir, "index.html")
	resolver := &fakeResolver{res: stackresolve.Resources{BucketName: "stack-bucket"}}

	out, err := run(context.Background(), Options{Dir: dir, Stack: "site"}, f.config(dir), testAWSConfig(), resolver, discard)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Skipped || len(f.puts) != 0 {
		t.Errorf("outcome = %+v, puts = %v", out, f.puts)
	}
}

// TestRun_StackResolveError verifies resolution errors abort the deploy.
func TestRun_StackResolveError(t *testing.T) {
	f := newFakeEndpoints(t)
	dir := t.TempDir()
	writeSite(t, dir, "index.html")
	boom := errors.New("stack does not exist")

	_, err := run(context.Background(), Options{Dir: dir, Stack: "site"}, f.config(dir), testAWSConfig(), &fakeResolver{err: boom}, discard)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

// TestRun_EntryMissingFailsBeforeUpload verifies a directory without the
// index file is rejected before any object is stored.
func TestRun_EntryMissingFailsBeforeUpload(t *testing.T) {
	f := newFakeEndpoints(t)
	dir := t.TempDir()
	writeSite(t, dir, "app.js")

	_, err := run(context.Background(), Options{Dir: dir, ObjectStore: "b", CDNDistribution: "d"}, f.config(dir), testAWSConfig(), nil, discard)
	if !errors.Is(err, uploadplan.ErrEntryMissing) {
		t.Fatalf("err = %v, want ErrEntryMissing", err)
	}
	if len(f.puts) != 0 {
		t.Errorf("puts = %v", f.puts)
	}
}

// TestManifest_WritesHashAndIndex verifies the manifest names the entry
// asset and carries a hash that the handler can load as config.
func TestManifest_WritesHashAndIndex(t *testing.T) {
	dir := t.TempDir()
	writeSite(t, dir, "index.html", "app.js")

	res, err := Manifest(ManifestOptions{Dir: dir}, discard)
	if err != nil {
		t.Fatalf("Manifest: %v", err)
	}
	if !res.Written || res.Path != filepath.Join(dir, "sitedeploy.yml") || len(res.ContentHash) != 64 {
		t.Errorf("result = %+v", res)
	}
	m, err := configloader.LoadManifest(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	if m.IndexFilename != "index.html" || m.ContentHash != res.ContentHash {
		t.Errorf("manifest = %+v", m)
	}

	again, err := Manifest(ManifestOptions{Dir: dir}, discard)
	if err != nil {
		t.Fatal(err)
	}
	if again.Written || again.ContentHash != res.ContentHash {
		t.Errorf("second run = %+v, want unchanged and not rewritten", again)
	}
	if res.PreviousContentHash != "" || again.PreviousContentHash != res.ContentHash {
		t.Errorf("previous hashes = %q then %q", res.PreviousContentHash, again.PreviousContentHash)
	}
}

// TestManifest_PreservesUserConfig verifies writing the manifest into an
// existing sitedeploy.yml keeps the user's settings, so a later deploy still
// honours them.
func TestManifest_PreservesUserConfig(t *testing.T) {
	dir := t.TempDir()
	writeSite(t, dir, "index.html", "app.js", "app.js.map")
	path := filepath.Join(dir, "sitedeploy.yml")
	if err := os.WriteFile(path, []byte("exclusions: [\"*.map\"]\nconcurrency: 8\nregion: eu-west-1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := Manifest(ManifestOptions{Dir: dir}, discard)
	if err != nil {
		t.Fatalf("Manifest: %v", err)
	}

	cfg, err := configloader.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Exclusions) != 1 || cfg.Exclusions[0] != "*.map" {
		t.Errorf("Exclusions = %v", cfg.Exclusions)
	}
	if cfg.Concurrency != 8 || cfg.Region != "eu-west-1" {
		t.Errorf("Concurrency = %d, Region = %q", cfg.Concurrency, cfg.Region)
	}
	if cfg.ContentHash != res.ContentHash {
		t.Errorf("ContentHash = %q, want %q", cfg.ContentHash, res.ContentHash)
	}
}

// TestManifest_MissingIndex verifies the manifest is refused when the entry
// asset is absent.
func TestManifest_MissingIndex(t *testing.T) {
	dir := t.TempDir()
	writeSite(t, dir, "app.js")

	_, err := Manifest(ManifestOptions{Dir: dir}, discard)
	if err == nil || !strings.Contains(err.Error(), "index.html not found in assets") {
		t.Fatalf("err = %v", err)
	}
}

// TestNewRequestID verifies the format and that ids do not repeat.
func TestNewRequestID(t *testing.T) {
	re := regexp.MustCompile(`^cli-[0-9a-z]+$`)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := newRequestID()
		if !re.MatchString(id) {
			t.Fatalf("id %q has wrong format", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

// TestNewLogger_TeesToFile verifies records reach both stderr and the log
// file when a path is given.
func TestNewLogger_TeesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "deploy.log")
	var stderr bytes.Buffer

	logger, closer, err := NewLogger(&stderr, path, false)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Info("stored object", "key", "index.html")
	logger.Debug("hidden at info level")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, out := range []string{stderr.String(), string(data)} {
		if !strings.Contains(out, "key=index.html") {
			t.Errorf("output missing record: %q", out)
		}
		if strings.Contains(out, "hidden") {
			t.Errorf("debug record leaked: %q", out)
		}
	}
}
