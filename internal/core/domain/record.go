package domain

import "fmt"

// PackageRecord is the immutable descriptor of one package build as published
// by a channel index. Records are owned by their Index snapshot; the solver
// and planner reference them and never mutate them.
//
// Identity is the (channel, subdir, name, version, build) tuple.
type PackageRecord struct {
	Name        InternedString `json:"name"`
	Version     string         `json:"version"`
	Build       string         `json:"build"`
	BuildNumber int            `json:"build_number"`
	Channel     string         `json:"channel"`
	Subdir      string         `json:"subdir"`

	// Depends are match specs that must be satisfied by some member of any
	// environment containing this record.
	Depends []string `json:"depends,omitempty"`

	// Constrains are match specs that installed packages of the named
	// dependency must satisfy, without requiring the dependency itself.
	Constrains []string `json:"constrains,omitempty"`

	// TrackFeatures are opt-in tags; the solver excludes tagged candidates
	// unless the feature was requested.
	TrackFeatures []string `json:"track_features,omitempty"`

	// ContentHash is the sha256 hex digest of the package archive.
	ContentHash string `json:"content_hash"`
	Size        int64  `json:"size"`
	Timestamp   int64  `json:"timestamp"`
}

// Key returns the full identity key of the record.
func (r *PackageRecord) Key() string {
	return fmt.Sprintf("%s/%s::%s-%s-%s", r.Channel, r.Subdir, r.Name.String(), r.Version, r.Build)
}

// NameVersionBuild returns the record's name-version-build triple, which is
// unique within one (channel, subdir) index.
func (r *PackageRecord) NameVersionBuild() string {
	return fmt.Sprintf("%s-%s-%s", r.Name.String(), r.Version, r.Build)
}

// Filename returns the archive file name served by the channel.
func (r *PackageRecord) Filename() string {
	return r.NameVersionBuild() + ".tar.gz"
}

// SameBuild reports whether two records denote the identical package build.
func (r *PackageRecord) SameBuild(other *PackageRecord) bool {
	return r.Key() == other.Key()
}

// FileRecord is one file of an extracted package, relative to the package
// root. Hash is the xxhash64 hex digest of the file content.
type FileRecord struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// Manifest is the verified file listing of one extracted cache entry.
type Manifest struct {
	ContentHash string       `json:"content_hash"`
	Files       []FileRecord `json:"files"`
}
