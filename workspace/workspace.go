// Package workspace owns the set of mounted workspaces: naming, mount paths,
// the connected/disconnected lifecycle of local directories, and the
// persisted workspace list.
package workspace

import (
	"regexp"
	"strings"

	"github.com/brettbedarf/workspacefs"
	"github.com/brettbedarf/workspacefs/composite"
	"github.com/brettbedarf/workspacefs/localdir"
)

// Type is the kind of provider behind a workspace
type Type string

const (
	TypeVirtual  Type = "virtual"
	TypeLocal    Type = "local"
	TypeLibrary  Type = "library"
	TypeDocs     Type = "docs"
	TypeBook     Type = "book"
	TypeExamples Type = "examples"
)

// ReadOnly reports whether workspaces of this type reject writes
func (t Type) ReadOnly() bool {
	switch t {
	case TypeLibrary, TypeDocs, TypeBook, TypeExamples:
		return true
	}
	return false
}

// persisted reports whether workspaces of this type are saved in the metadata
func (t Type) persisted() bool {
	return t == TypeVirtual || t == TypeLocal
}

// Well-known mount paths and display names of the read-only workspaces
var readOnlyMounts = map[Type]struct{ path, name string }{
	TypeLibrary:  {"/libs", "Libraries"},
	TypeDocs:     {"/docs", "Docs"},
	TypeBook:     {"/book", "Book"},
	TypeExamples: {"/examples", "Examples"},
}

// Status is the connection state of a workspace. Only local workspaces are
// ever disconnected.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// Workspace is one mounted provider
type Workspace struct {
	ID        string
	Name      string
	Type      Type
	MountPath string
	Provider  workspacefs.FileSystem
	Status    Status
	ReadOnly  bool

	// Handle is the granted directory of a local workspace; nil until connected
	Handle localdir.Handle

	// Permanent workspaces cannot be removed
	Permanent bool
}

// Connected reports whether the workspace is usable
func (w Workspace) Connected() bool { return w.Status == StatusConnected }

func (w *Workspace) mount() composite.Mount {
	return composite.Mount{
		Path:         w.MountPath,
		Name:         w.Name,
		Type:         string(w.Type),
		Provider:     w.Provider,
		ReadOnly:     w.ReadOnly,
		Disconnected: w.Status == StatusDisconnected,
	}
}

var slugSeparators = regexp.MustCompile(`[^a-z0-9]+`)

// NameToMountPath derives a mount path from a display name: lower-cased,
// runs of other characters collapsed to one hyphen, "workspace" when
// nothing is left.
func NameToMountPath(name string) string {
	slug := slugSeparators.ReplaceAllString(strings.ToLower(name), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "workspace"
	}
	return "/" + slug
}
