package models

import (
	"fmt"
	"sort"
	"strings"
)

// PlatformType identifies a social network a post can be delivered to.
type PlatformType string

const (
	PlatformTwitter   PlatformType = "twitter"
	PlatformFacebook  PlatformType = "facebook"
	PlatformInstagram PlatformType = "instagram"
	PlatformLinkedIn  PlatformType = "linkedin"
)

type platformInfo struct {
	displayName string
	aliases     []string
}

// Adding a platform means adding an entry here plus a renderer and a publisher.
var platforms = map[PlatformType]platformInfo{
	PlatformTwitter:   {displayName: "Twitter", aliases: []string{"x", "tw"}},
	PlatformFacebook:  {displayName: "Facebook", aliases: []string{"fb", "meta"}},
	PlatformInstagram: {displayName: "Instagram", aliases: []string{"ig", "insta"}},
	PlatformLinkedIn:  {displayName: "LinkedIn", aliases: []string{"li", "linked-in"}},
}

var platformAliases = func() map[string]PlatformType {
	m := make(map[string]PlatformType)
	for p, info := range platforms {
		m[string(p)] = p
		for _, alias := range info.aliases {
			m[alias] = p
		}
	}
	return m
}()

// ParsePlatform resolves a platform name or alias, case-insensitively.
func ParsePlatform(name string) (PlatformType, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if p, ok := platformAliases[key]; ok {
		return p, nil
	}
	return "", fmt.Errorf("%w: unknown platform %q", ErrValidation, name)
}

// KnownPlatforms returns every supported platform in a stable order.
func KnownPlatforms() []PlatformType {
	out := make([]PlatformType, 0, len(platforms))
	for p := range platforms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (p PlatformType) IsKnown() bool {
	_, ok := platforms[p]
	return ok
}

func (p PlatformType) DisplayName() string {
	if info, ok := platforms[p]; ok {
		return info.displayName
	}
	return string(p)
}

func (p PlatformType) String() string {
	return string(p)
}
