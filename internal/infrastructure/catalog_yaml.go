package infrastructure

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"gopkg.in/yaml.v3"

	"github.com/yourusername/qpaper-go/catalogs"
	"github.com/yourusername/qpaper-go/internal/domain"
)

// LoadCatalog reads the catalog at path, or the embedded default catalog when path is empty
func LoadCatalog(path string) (*domain.Catalog, error) {
	if path == "" {
		return ParseCatalog(catalogs.Default())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog document
func ParseCatalog(data []byte) (*domain.Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var catalog domain.Catalog
	if err := dec.Decode(&catalog); err != nil {
		return nil, fmt.Errorf("unmarshalling catalog: %w", err)
	}
	if err := catalog.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	return &catalog, nil
}

// ResolveDestination maps a paper name to its file under root.
// The result is always inside root.
func ResolveDestination(root, name string) (string, error) {
	parsed, err := domain.ParsePaperName(name)
	if err != nil {
		return "", err
	}

	dest, err := securejoin.SecureJoin(root, parsed.RelativePath())
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", name, err)
	}
	return dest, nil
}

// ErrOutsideRoot is returned for destinations that would leave the papers root
var ErrOutsideRoot = errors.New("destination outside papers root")

// ConfineDestination maps a caller-supplied destination to a file under root.
// Relative paths are joined to root; absolute paths must already lie inside it.
func ConfineDestination(root, dest string) (string, error) {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return "", fmt.Errorf("destination is required")
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	rel := filepath.Clean(dest)
	if filepath.IsAbs(rel) {
		r, err := filepath.Rel(root, rel)
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrOutsideRoot, dest)
		}
		rel = r
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, dest)
	}

	confined, err := securejoin.SecureJoin(root, rel)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", dest, err)
	}
	return confined, nil
}

// CreateLayout creates the directory skeleton under root and returns the directories it ensured
func CreateLayout(root string) ([]string, error) {
	var created []string
	for _, rel := range domain.DefaultLayout() {
		dir, err := securejoin.SecureJoin(root, rel)
		if err != nil {
			return created, fmt.Errorf("resolving %s: %w", rel, err)
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return created, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		created = append(created, dir)
	}
	return created, nil
}

// GuideFileName is the guide WriteGuide leaves in the papers root
const GuideFileName = "README.md"

// WriteGuide writes a README under root listing every catalog source and the
// file each paper is stored as, for papers that must be fetched by hand.
func WriteGuide(root string, catalog *domain.Catalog) (string, error) {
	var b strings.Builder
	b.WriteString("# Question papers\n\n")
	b.WriteString("Papers are stored as <board>/<class>/<subject>/<year>/<name>.pdf under this directory.\n")
	b.WriteString("Run `qpaper sync` to fetch the catalog, or save a PDF by hand at the path listed below.\n")

	for _, group := range catalog.Boards {
		fmt.Fprintf(&b, "\n## %s\n\n", group.Board)
		for _, entry := range group.Papers {
			rel := "(unrecognised name)"
			if parsed, err := domain.ParsePaperName(entry.Name); err == nil {
				rel = filepath.ToSlash(parsed.RelativePath())
			}
			fmt.Fprintf(&b, "- **%s**: %s\n  - save as `%s`\n", entry.Name, entry.URL, rel)
		}
	}

	if hosts := sourceHosts(catalog); len(hosts) > 0 {
		b.WriteString("\n## Sources\n\n")
		for _, host := range hosts {
			fmt.Fprintf(&b, "- https://%s\n", host)
		}
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", root, err)
	}
	path := filepath.Join(root, GuideFileName)
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return "", fmt.Errorf("failed to write guide: %w", err)
	}
	return path, nil
}

func sourceHosts(catalog *domain.Catalog) []string {
	seen := make(map[string]bool)
	var hosts []string
	for _, group := range catalog.Boards {
		for _, entry := range group.Papers {
			u, err := url.Parse(entry.URL)
			if err != nil || u.Host == "" || seen[u.Host] {
				continue
			}
			seen[u.Host] = true
			hosts = append(hosts, u.Host)
		}
	}
	sort.Strings(hosts)
	return hosts
}
