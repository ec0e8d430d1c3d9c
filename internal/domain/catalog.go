package domain

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// CatalogEntry is a known direct link to a question paper
type CatalogEntry struct {
	Name string `yaml:"name" json:"name" validate:"required"`
	URL  string `yaml:"url" json:"url" validate:"required,url"`
}

// CatalogGroup lists the papers published by one board
type CatalogGroup struct {
	Board  string         `yaml:"board" json:"board"`
	Papers []CatalogEntry `yaml:"papers" json:"papers" validate:"dive"`
}

// Catalog is the set of paper links the syncer mirrors
type Catalog struct {
	Boards []CatalogGroup `yaml:"boards" json:"boards" validate:"dive"`
}

// Entries returns every entry in catalog order
func (c *Catalog) Entries() []CatalogEntry {
	var entries []CatalogEntry
	for _, group := range c.Boards {
		entries = append(entries, group.Papers...)
	}
	return entries
}

// Validate checks every entry has a name and an absolute URL
func (c *Catalog) Validate() error {
	return validate.Struct(c)
}

// PaperName is the parsed form of a paper name such as WBBSE-Class-10-Mathematics-2024
type PaperName struct {
	Name     string `json:"name"`
	Code     string `json:"code"`      // WBBSE, CBSE, JEE-Main, ...
	Group    string `json:"group"`     // boards or competitive
	BoardDir string `json:"board_dir"` // directory name of the board
	Class    string `json:"class,omitempty"`
	Subject  string `json:"subject"`
	Year     int    `json:"year"`
}

type boardInfo struct {
	group      string
	dir        string
	classBased bool
}

var boardCodes = map[string]boardInfo{
	"WBBSE":        {group: "boards", dir: "West-Bengal-Board", classBased: true},
	"WBCHSE":       {group: "boards", dir: "West-Bengal-Board", classBased: true},
	"CBSE":         {group: "boards", dir: "CBSE", classBased: true},
	"JEE-Main":     {group: "competitive", dir: "JEE-Main"},
	"JEE-Advanced": {group: "competitive", dir: "JEE-Advanced"},
	"NIT":          {group: "competitive", dir: "NIT"},
	"WBJEE":        {group: "competitive", dir: "WBJEE"},
}

// ParsePaperName splits a catalog paper name into board, class, subject and year
func ParsePaperName(name string) (PaperName, error) {
	parts := strings.Split(name, "-")
	if len(parts) < 3 {
		return PaperName{}, fmt.Errorf("paper name %q: too few parts", name)
	}

	code, rest := "", []string(nil)
	if len(parts) > 3 {
		if _, ok := boardCodes[parts[0]+"-"+parts[1]]; ok {
			code, rest = parts[0]+"-"+parts[1], parts[2:]
		}
	}
	if code == "" {
		if _, ok := boardCodes[parts[0]]; !ok {
			return PaperName{}, fmt.Errorf("paper name %q: unknown board %q", name, parts[0])
		}
		code, rest = parts[0], parts[1:]
	}
	info := boardCodes[code]

	year, err := strconv.Atoi(rest[len(rest)-1])
	if err != nil || year < 1900 || year > 2100 {
		return PaperName{}, fmt.Errorf("paper name %q: invalid year %q", name, rest[len(rest)-1])
	}
	rest = rest[:len(rest)-1]

	parsed := PaperName{
		Name:     name,
		Code:     code,
		Group:    info.group,
		BoardDir: info.dir,
		Year:     year,
	}

	if info.classBased {
		if len(rest) < 3 || rest[0] != "Class" {
			return PaperName{}, fmt.Errorf("paper name %q: expected Class-<n> after %s", name, code)
		}
		if _, err := strconv.Atoi(rest[1]); err != nil {
			return PaperName{}, fmt.Errorf("paper name %q: invalid class %q", name, rest[1])
		}
		parsed.Class = "Class-" + rest[1]
		rest = rest[2:]
	}

	if len(rest) == 0 {
		return PaperName{}, fmt.Errorf("paper name %q: missing subject", name)
	}
	parsed.Subject = strings.Join(rest, "-")

	return parsed, nil
}

// RelativePath returns the slash-free relative location of the paper under the papers root
func (n PaperName) RelativePath() string {
	elems := []string{n.Group, n.BoardDir}
	if n.Class != "" {
		elems = append(elems, n.Class)
	}
	elems = append(elems, n.Subject, strconv.Itoa(n.Year), n.Name+".pdf")
	return filepath.Join(elems...)
}

// DefaultLayout is the directory skeleton created under the papers root
func DefaultLayout() []string {
	structure := []struct {
		base    string
		subdirs []string
	}{
		{"boards/West-Bengal-Board", []string{"Class-10", "Class-12"}},
		{"boards/CBSE", []string{"Class-10", "Class-12"}},
		{"competitive/JEE-Main", []string{"Mathematics", "Physics", "Chemistry"}},
		{"competitive/JEE-Advanced", []string{"Mathematics", "Physics", "Chemistry"}},
		{"competitive/NIT", []string{"Mathematics", "Physics", "Chemistry"}},
		{"competitive/WBJEE", []string{"Mathematics", "Physics", "Chemistry"}},
	}

	var dirs []string
	for _, s := range structure {
		for _, sub := range s.subdirs {
			dirs = append(dirs, filepath.Join(filepath.FromSlash(s.base), sub))
		}
	}
	return dirs
}
