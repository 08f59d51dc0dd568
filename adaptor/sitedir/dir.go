// Package sitedir reads the local deploy directory: the flat listing of
// asset names, asset bytes with their Content-Type, and a content hash of
// the whole build.
package sitedir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gobwas/glob"

	"github.com/gurre/sitedeploy-go/logic/contenttype"
)

// sniffLen is how many leading bytes mimetype inspects.
const sniffLen = 3072

// File is one asset read from disk.
type File struct {
	Name        string
	Path        string
	ContentType string
	Body        []byte
}

// Dir is a deploy directory.
type Dir struct {
	root  string
	sniff bool
}

// Open returns a Dir rooted at root. With sniff set, files whose extension
// is not in the content-type table are typed from their content.
//
//	d := sitedir.Open("/var/task/site", false)
//	names, err := d.List()
func Open(root string, sniff bool) *Dir {
	return &Dir{root: root, sniff: sniff}
}

// Root returns the directory path.
func (d *Dir) Root() string { return d.root }

// List returns the names of the regular files directly in the directory,
// sorted. Subdirectories are not descended into.
func (d *Dir) List() ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("sitedir: read %s: %w", d.root, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Read reads one asset and resolves its Content-Type.
//
//	f, err := d.Read("index.html")
//	// f.ContentType == "text/html"
func (d *Dir) Read(name string) (File, error) {
	p := filepath.Join(d.root, name)
	body, err := os.ReadFile(p)
	if err != nil {
		return File{}, fmt.Errorf("sitedir: read %s: %w", p, err)
	}
	return File{Name: name, Path: p, ContentType: d.contentType(name, body), Body: body}, nil
}

func (d *Dir) contentType(name string, body []byte) string {
	if !d.sniff || contenttype.Known(name) || len(body) == 0 {
		return contenttype.Resolve(name)
	}
	head := body
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	return mimetype.Detect(head).String()
}

// Has reports whether name is a regular file in the directory.
func (d *Dir) Has(name string) bool {
	info, err := os.Stat(filepath.Join(d.root, name))
	return err == nil && info.Mode().IsRegular()
}

// ContentHash digests the listed files that do not match any exclusion
// pattern. The digest covers names and bytes in sorted name order, so it
// changes whenever any deployed asset changes and is stable otherwise.
//
//	h, err := d.ContentHash([]string{"bootstrap", "sitedeploy.yml"})
func (d *Dir) ContentHash(exclusions []string) (string, error) {
	globs := make([]glob.Glob, 0, len(exclusions))
	for _, p := range exclusions {
		g, err := glob.Compile(p)
		if err != nil {
			return "", fmt.Errorf("sitedir: exclusion %q: %w", p, err)
		}
		globs = append(globs, g)
	}

	names, err := d.List()
	if err != nil {
		return "", err
	}

	h := sha256.New()
	for _, name := range names {
		if matchesAny(globs, name) {
			continue
		}
		body, err := os.ReadFile(filepath.Join(d.root, name))
		if err != nil {
			return "", fmt.Errorf("sitedir: hash %s: %w", name, err)
		}
		fmt.Fprintf(h, "%s\x00%d\x00", name, len(body))
		h.Write(body)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func matchesAny(globs []glob.Glob, name string) bool {
	for _, g := range globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}
