package security

import "testing"

func TestStaticResolverKnownProfile(t *testing.T) {
	r := NewStaticResolver(map[string]IsolationProfile{
		"compiled": {RootFS: "/roots/go", SeccompProfile: "compile.json"},
	})
	p, err := r.Resolve("compiled")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if p.RootFS != "/roots/go" {
		t.Fatalf("rootfs = %q", p.RootFS)
	}
}

func TestStaticResolverUnknownDeniesNetwork(t *testing.T) {
	r := NewStaticResolver(nil)
	p, err := r.Resolve("mystery")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !p.DisableNetwork {
		t.Fatal("fallback profile allows network")
	}
}

func TestStaticResolverEmptyName(t *testing.T) {
	r := NewStaticResolver(nil)
	if _, err := r.Resolve(""); err == nil {
		t.Fatal("empty profile name accepted")
	}
}
