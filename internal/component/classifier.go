// Package component assigns roles to media components from their naming
// conventions and selects the best component under a preference.
package component

import (
	"strings"

	"github.com/MacJediWizard/shotsweep/internal/ftrack"
)

// Role is the derived category of a media component.
type Role string

const (
	RoleOriginal    Role = "original"
	RoleEncodedHigh Role = "encoded-high"
	RoleEncodedLow  Role = "encoded-low"
	RoleImage       Role = "image"
	RoleOther       Role = "other"
)

// Preference selects which role family FindBest should favor.
type Preference string

const (
	PreferOriginal Preference = "original"
	PreferEncoded  Preference = "encoded"
)

// Review encode components carry fixed names assigned by the server.
const (
	encodedHighName = "ftrackreview-mp4-1080"
	encodedLowName  = "ftrackreview-mp4"
	reviewPrefix    = "ftrackreview"
)

var imageExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true, "bmp": true,
	"tif": true, "tiff": true, "exr": true, "dpx": true, "webp": true,
	"psd": true, "svg": true,
}

var videoExtensions = map[string]bool{
	"mov": true, "mp4": true, "avi": true, "mkv": true, "mxf": true,
	"webm": true, "m4v": true, "wmv": true, "r3d": true,
}

// Identify assigns a role to a component. It is total: anything not
// recognized is RoleOther.
func Identify(c ftrack.Component) Role {
	name := strings.ToLower(c.Name)

	switch name {
	case encodedHighName:
		return RoleEncodedHigh
	case encodedLowName:
		return RoleEncodedLow
	}

	if hasExtension(c, imageExtensions) {
		return RoleImage
	}
	if hasExtension(c, videoExtensions) && !strings.Contains(name, reviewPrefix) {
		return RoleOriginal
	}
	return RoleOther
}

func hasExtension(c ftrack.Component, table map[string]bool) bool {
	if ext := normalizeExt(c.FileType); table[ext] {
		return true
	}
	if idx := strings.LastIndex(c.Name, "."); idx >= 0 {
		return table[normalizeExt(c.Name[idx:])]
	}
	return false
}

func normalizeExt(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))
}

// Fallback chains consulted in order when the preferred role is absent.
var fallbackChains = map[Preference][]Role{
	PreferOriginal: {RoleOriginal, RoleEncodedHigh, RoleEncodedLow, RoleImage},
	PreferEncoded:  {RoleEncodedHigh, RoleEncodedLow, RoleImage, RoleOriginal},
}

// FindBest picks the best component under the preference: the first role
// in the fallback chain that has at least one component, largest by size.
// When the chain is exhausted it falls back to the largest component of
// any role. Returns nil only when no component exists at all.
func FindBest(components []ftrack.Component, pref Preference) *ftrack.Component {
	if len(components) == 0 {
		return nil
	}

	byRole := make(map[Role][]ftrack.Component)
	for _, c := range components {
		role := Identify(c)
		byRole[role] = append(byRole[role], c)
	}

	chain, ok := fallbackChains[pref]
	if !ok {
		chain = fallbackChains[PreferOriginal]
	}
	for _, role := range chain {
		if group := byRole[role]; len(group) > 0 {
			return largest(group)
		}
	}
	return largest(components)
}

func largest(components []ftrack.Component) *ftrack.Component {
	best := &components[0]
	for i := 1; i < len(components); i++ {
		if components[i].Size > best.Size {
			best = &components[i]
		}
	}
	return best
}
