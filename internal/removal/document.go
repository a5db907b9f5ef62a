// Package removal implements selective teardown: a human-editable document of
// removal nodes with cascading enable flags, a planner that resolves the flags
// into an execution closure, and a best-effort executor that walks the closure.
package removal

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-version"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/errors"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/util"
)

// DocumentVersion is the version written into freshly generated documents.
const DocumentVersion = "1.0"

// The fixed top-level categories, in execution order. Services go first so
// dependent cleanups (revoking group membership, purging packages) happen only
// after the services relying on them are gone; the reboot is always last.
const (
	CategoryServices            = "services"
	CategoryInfrastructure      = "infrastructure"
	CategorySystemModifications = "system_modifications"
	CategorySystemPackages      = "system_packages"
	CategoryCleanupFiles        = "cleanup_files"
	CategorySystemReboot        = "system_reboot"
)

// CategoryOrder is the fixed execution order of the top-level categories.
var CategoryOrder = []string{
	CategoryServices,
	CategoryInfrastructure,
	CategorySystemModifications,
	CategorySystemPackages,
	CategoryCleanupFiles,
	CategorySystemReboot,
}

// Node is a single element of the removal tree. Nothing is removed unless a
// node, or one of its ancestors, is explicitly enabled.
type Node struct {
	Enabled     bool             `yaml:"enabled" mapstructure:"enabled"`
	Description string           `yaml:"description,omitempty" mapstructure:"description"`
	Path        string           `yaml:"path,omitempty" mapstructure:"path"`
	Impact      string           `yaml:"impact,omitempty" mapstructure:"impact"`
	Children    map[string]*Node `yaml:"children,omitempty" mapstructure:"children"`
}

// Document is the whole removal tree plus its header. The top-level categories
// are typed fields rather than a dynamic map, so a category typo is a compile
// error instead of a silent no-op.
type Document struct {
	Version             string `yaml:"version" mapstructure:"version"`
	Instructions        string `yaml:"instructions,omitempty" mapstructure:"instructions"`
	Services            *Node  `yaml:"services,omitempty" mapstructure:"services"`
	Infrastructure      *Node  `yaml:"infrastructure,omitempty" mapstructure:"infrastructure"`
	SystemModifications *Node  `yaml:"system_modifications,omitempty" mapstructure:"system_modifications"`
	SystemPackages      *Node  `yaml:"system_packages,omitempty" mapstructure:"system_packages"`
	CleanupFiles        *Node  `yaml:"cleanup_files,omitempty" mapstructure:"cleanup_files"`
	SystemReboot        *Node  `yaml:"system_reboot,omitempty" mapstructure:"system_reboot"`
}

// Category returns the root node of the named category, or nil.
func (doc *Document) Category(name string) *Node {
	switch name {
	case CategoryServices:
		return doc.Services
	case CategoryInfrastructure:
		return doc.Infrastructure
	case CategorySystemModifications:
		return doc.SystemModifications
	case CategorySystemPackages:
		return doc.SystemPackages
	case CategoryCleanupFiles:
		return doc.CleanupFiles
	case CategorySystemReboot:
		return doc.SystemReboot
	}

	return nil
}

// EnableAll recursively forces every node's enabled flag to true. Used for
// unattended full teardown.
func (doc *Document) EnableAll() {
	for _, name := range CategoryOrder {
		enableAll(doc.Category(name))
	}
}

func enableAll(node *Node) {
	if node == nil {
		return
	}

	node.Enabled = true

	for _, child := range node.Children {
		enableAll(child)
	}
}

// Load reads and decodes the removal document at the given path. The document
// is hand-edited by operators, so decoding is deliberately forgiving: scalar
// types are coerced where unambiguous (e.g. `enabled: 1`), and unknown keys are
// ignored rather than rejected.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.New(MalformedDocumentError{Path: path, Err: err})
	}

	doc := &Document{}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           doc,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, errors.New(err)
	}

	if err := decoder.Decode(raw); err != nil {
		return nil, errors.New(MalformedDocumentError{Path: path, Err: err})
	}

	if err := checkVersion(path, doc.Version); err != nil {
		return nil, err
	}

	return doc, nil
}

// Save writes the document to the given path.
func (doc *Document) Save(path string) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return errors.New(err)
	}

	return util.WriteFileAtomic(path, data, 0644)
}

// Delete removes the document file. A missing file is not an error: the
// document is ephemeral by contract and may already be gone.
func Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.New(err)
	}

	return nil
}

var maxSupportedVersion = version.Must(version.NewVersion("2.0"))

func checkVersion(path, verStr string) error {
	// Hand-edited documents may drop the header; treat that as current.
	if verStr == "" {
		return nil
	}

	ver, err := version.NewVersion(verStr)
	if err != nil {
		return errors.New(MalformedDocumentError{Path: path, Err: err})
	}

	if ver.GreaterThanOrEqual(maxSupportedVersion) {
		return errors.New(UnsupportedDocumentVersionError{Path: path, Version: verStr})
	}

	return nil
}

// MalformedDocumentError is returned when the removal document cannot be
// decoded. The operator must repair the file or delete it to regenerate.
type MalformedDocumentError struct {
	Path string
	Err  error
}

func (err MalformedDocumentError) Error() string {
	return fmt.Sprintf("malformed removal document %s: %v; fix the file or delete it to regenerate", err.Path, err.Err)
}

func (err MalformedDocumentError) Unwrap() error {
	return err.Err
}

// UnsupportedDocumentVersionError is returned when the document was written by
// a newer, incompatible version of this program.
type UnsupportedDocumentVersionError struct {
	Path    string
	Version string
}

func (err UnsupportedDocumentVersionError) Error() string {
	return fmt.Sprintf("removal document %s has version %s, which this version of the program does not support; delete it to regenerate", err.Path, err.Version)
}
