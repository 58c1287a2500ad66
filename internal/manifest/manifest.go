package manifest

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/jiegec/rustup-mirror/internal/domain/dist"
)

const (
	// SupportedVersion is the only manifest-version the mirror understands.
	SupportedVersion = "2"

	versionKey   = "manifest-version"
	dateKey      = "date"
	packagesKey  = "pkg"
	targetsKey   = "target"
	availableKey = "available"
)

// VariantKind selects one of the two downloads a target entry carries.
type VariantKind int

const (
	// Plain is the gzip tarball under url/hash.
	Plain VariantKind = iota
	// XZ is the xz tarball under xz_url/xz_hash.
	XZ
)

// String implements fmt.Stringer.
func (k VariantKind) String() string {
	if k == XZ {
		return "xz"
	}

	return "gz"
}

func (k VariantKind) urlKey() string {
	if k == XZ {
		return "xz_url"
	}

	return "url"
}

func (k VariantKind) hashKey() string {
	if k == XZ {
		return "xz_hash"
	}

	return "hash"
}

// Variant is one downloadable file of a target entry.
type Variant struct {
	// Kind tells which key pair the variant was read from.
	Kind VariantKind
	// URL is the download location as written in the manifest.
	URL string
	// Hash is the upstream-declared lowercase hex SHA-256.
	Hash string
}

// Manifest is a parsed channel manifest.
type Manifest struct {
	tree     map[string]any
	date     string
	packages []*Package
}

// Package is one pkg.<name> table.
type Package struct {
	// Name is the package name, e.g. rust-std.
	Name    string
	targets []*TargetEntry
}

// TargetEntry is one pkg.<name>.target.<triple> table.
type TargetEntry struct {
	// Package is the owning package name.
	Package string
	// Target is the triple key, possibly the wildcard.
	Target string
	table  map[string]any
}

// Load parses manifest bytes and validates their structure.
func Load(data []byte) (*Manifest, error) {
	tree := make(map[string]any)
	if err := toml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("decode manifest: %w: %w", dist.ErrParse, err)
	}

	version, _ := tree[versionKey].(string)
	if version != SupportedVersion {
		return nil, fmt.Errorf("%s is %q, want %q: %w", versionKey, version, SupportedVersion, dist.ErrSchema)
	}

	date, ok := tree[dateKey].(string)
	if !ok {
		return nil, fmt.Errorf("missing %s: %w", dateKey, dist.ErrParse)
	}

	if _, ok = dist.ParseReleaseDate(date); !ok {
		return nil, fmt.Errorf("%s %q is not a calendar date: %w", dateKey, date, dist.ErrParse)
	}

	rawPackages, ok := tree[packagesKey].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("missing %s table: %w", packagesKey, dist.ErrParse)
	}

	m := &Manifest{
		tree:     tree,
		date:     date,
		packages: make([]*Package, 0, len(rawPackages)),
	}

	for _, name := range sortedKeys(rawPackages) {
		pkg, err := loadPackage(name, rawPackages[name])
		if err != nil {
			return nil, err
		}

		m.packages = append(m.packages, pkg)
	}

	return m, nil
}

func loadPackage(name string, raw any) (*Package, error) {
	table, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("pkg.%s is not a table: %w", name, dist.ErrParse)
	}

	rawTargets, ok := table[targetsKey].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("pkg.%s has no target table: %w", name, dist.ErrParse)
	}

	pkg := &Package{
		Name:    name,
		targets: make([]*TargetEntry, 0, len(rawTargets)),
	}

	for _, triple := range sortedKeys(rawTargets) {
		entryTable, ok := rawTargets[triple].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("pkg.%s.target.%s is not a table: %w", name, triple, dist.ErrParse)
		}

		entry := &TargetEntry{Package: name, Target: triple, table: entryTable}
		if err := entry.validate(); err != nil {
			return nil, err
		}

		pkg.targets = append(pkg.targets, entry)
	}

	return pkg, nil
}

// Date is the release date, used for the dated snapshot directory.
func (m *Manifest) Date() string {
	return m.date
}

// Packages returns packages sorted by name.
func (m *Manifest) Packages() []*Package {
	return m.packages
}

// Serialize encodes the current tree. Keys are emitted in sorted order, so
// the output is a pure function of the parsed content.
func (m *Manifest) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m.tree); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	return buf.Bytes(), nil
}

// Targets returns the entries sorted by triple.
func (p *Package) Targets() []*TargetEntry {
	return p.targets
}

// Available reports the entry's available flag.
func (e *TargetEntry) Available() bool {
	available, _ := e.table[availableKey].(bool)

	return available
}

// SetAvailable overwrites the available flag and leaves every other key as is.
func (e *TargetEntry) SetAvailable(available bool) {
	e.table[availableKey] = available
}

// Variants returns the plain variant followed by the xz variant when present.
// Unavailable entries have none.
func (e *TargetEntry) Variants() []Variant {
	if !e.Available() {
		return nil
	}

	variants := make([]Variant, 0, 2)

	for _, kind := range []VariantKind{Plain, XZ} {
		url, hasURL := e.table[kind.urlKey()].(string)
		hash, hasHash := e.table[kind.hashKey()].(string)

		if hasURL && hasHash {
			variants = append(variants, Variant{Kind: kind, URL: url, Hash: hash})
		}
	}

	return variants
}

// SetURL rewrites the URL of one variant.
func (e *TargetEntry) SetURL(kind VariantKind, url string) {
	e.table[kind.urlKey()] = url
}

func (e *TargetEntry) validate() error {
	raw, present := e.table[availableKey]
	if !present {
		return fmt.Errorf("%s has no %s flag: %w", e, availableKey, dist.ErrParse)
	}

	available, ok := raw.(bool)
	if !ok {
		return fmt.Errorf("%s %s is not a boolean: %w", e, availableKey, dist.ErrParse)
	}

	if !available {
		return nil
	}

	for _, kind := range []VariantKind{Plain, XZ} {
		_, hasURL := e.table[kind.urlKey()].(string)
		_, hasHash := e.table[kind.hashKey()].(string)

		switch {
		case kind == Plain && (!hasURL || !hasHash):
			return fmt.Errorf("%s lacks url or hash: %w", e, dist.ErrParse)
		case hasURL != hasHash:
			return fmt.Errorf("%s has %s without its pair: %w", e, kind, dist.ErrParse)
		}
	}

	return nil
}

// String identifies the entry in logs and errors.
func (e *TargetEntry) String() string {
	return "pkg." + e.Package + ".target." + e.Target
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}
