package topic

import (
	"fmt"
	"strings"
)

// Builder constructs topics of the form {root}/{segment}/{id}, optionally
// behind a $share/{group}/ prefix for subscriptions.
type Builder struct {
	root  string
	group string
}

// NewBuilder returns a Builder rooted at root (e.g. "roverhub/v1").
func NewBuilder(root string) *Builder {
	return &Builder{root: strings.TrimSuffix(root, "/")}
}

// Root returns the namespace shared by every topic of this builder.
func (b *Builder) Root() string {
	return b.root
}

// Shared returns a copy that prefixes topics with $share/{group}/. An empty
// group returns the builder unchanged.
func (b *Builder) Shared(group string) *Builder {
	if group == "" {
		return b
	}
	return &Builder{root: b.root, group: group}
}

// Build returns the concrete topic for one device.
func (b *Builder) Build(segment, id string) string {
	return b.prefix() + fmt.Sprintf("%s/%s/%s", b.root, segment, id)
}

// BuildWildcard returns the filter matching the segment for every device.
func (b *Builder) BuildWildcard(segment string) string {
	return b.Build(segment, Wildcard)
}

// Parse splits a received topic into its segment and device id. Segments may
// contain slashes; the id is always the last level.
func (b *Builder) Parse(topic string) (segment, id string, ok bool) {
	rest, found := strings.CutPrefix(topic, b.root+"/")
	if !found {
		return "", "", false
	}

	i := strings.LastIndex(rest, "/")
	if i <= 0 || i == len(rest)-1 {
		return "", "", false
	}

	return rest[:i], rest[i+1:], true
}

func (b *Builder) prefix() string {
	if b.group == "" {
		return ""
	}
	return "$share/" + b.group + "/"
}
