// Package config defines the deployer's configuration struct and its defaults.
// These are pure data types with no I/O; loading is handled by adaptor/configloader.
package config

// Deploy holds the deployer configuration. A value is built once at startup
// and passed by value, so components never observe later changes.
type Deploy struct {
	// IndexFilename is the entry asset served for all CDN paths. It is always
	// uploaded last.
	IndexFilename string
	// ScriptFilename is the deployer's own artifact name in the deploy
	// directory. It is never uploaded.
	ScriptFilename string
	// ManifestFilename is the name of the manifest written by "sitedeploy
	// manifest". It is never uploaded.
	ManifestFilename string
	// ContentHash identifies the build. It is reported as the custom
	// resource's physical id so updates are not treated as replacements.
	ContentHash string
	// Dir is the local deploy directory. Empty means the directory of the
	// running executable (handler) or the working directory (CLI).
	Dir string
	// Region is the AWS region. Empty defers to the SDK's default chain.
	Region string
	// S3EndpointOverride overrides the S3 endpoint.
	S3EndpointOverride string
	// CloudFrontEndpointOverride overrides the CloudFront endpoint.
	CloudFrontEndpointOverride string

	// Exclusions are glob patterns for names that must not be uploaded, in
	// addition to ScriptFilename and ManifestFilename.
	Exclusions []string

	// Concurrency bounds parallel uploads of non-entry assets.
	Concurrency int

	// Cache makes the manifest command skip rewriting an unchanged manifest.
	Cache bool
	// SniffUnknown detects the content type from file bytes when the
	// extension is not in the lookup table.
	SniffUnknown bool
}

// Default returns a Deploy config with the standard defaults.
//
//	cfg := config.Default()
//	cfg.IndexFilename = "app.html"
func Default() Deploy {
	return Deploy{
		IndexFilename:    "index.html",
		ScriptFilename:   "bootstrap",
		ManifestFilename: "sitedeploy.yml",
		Concurrency:      4,
		Cache:            true,
	}
}

// UploadExclusions returns every pattern excluded from upload: the deployer's
// own artifacts followed by the configured patterns. Empty names are dropped.
//
//	excl := cfg.UploadExclusions() // ["bootstrap", "sitedeploy.yml", ...]
func (d Deploy) UploadExclusions() []string {
	out := make([]string, 0, len(d.Exclusions)+2)
	for _, name := range []string{d.ScriptFilename, d.ManifestFilename} {
		if name != "" {
			out = append(out, name)
		}
	}
	for _, p := range d.Exclusions {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
