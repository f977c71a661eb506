// Package security defines sandbox isolation and security profiles.
package security

import appErr "arbiter/pkg/errors"

// IsolationProfile describes namespace and seccomp settings for one task kind.
type IsolationProfile struct {
	RootFS         string `yaml:"rootfs"`
	SeccompProfile string `yaml:"seccompProfile"`
	DisableNetwork bool   `yaml:"disableNetwork"`
}

// Resolver resolves a profile name into an isolation profile.
type Resolver interface {
	Resolve(profile string) (IsolationProfile, error)
}

// StaticResolver resolves profiles from a fixed map loaded at startup.
type StaticResolver struct {
	profiles map[string]IsolationProfile
	fallback IsolationProfile
}

// NewStaticResolver builds a resolver over named profiles. The fallback is
// used for unknown names so that a missing entry still denies network access.
func NewStaticResolver(profiles map[string]IsolationProfile) *StaticResolver {
	return &StaticResolver{
		profiles: profiles,
		fallback: IsolationProfile{DisableNetwork: true},
	}
}

func (r *StaticResolver) Resolve(profile string) (IsolationProfile, error) {
	if profile == "" {
		return IsolationProfile{}, appErr.ValidationError("profile", "required")
	}
	if p, ok := r.profiles[profile]; ok {
		return p, nil
	}
	return r.fallback, nil
}
