//go:build linux

package main

import (
	"encoding/json"
	"fmt"
	"os"

	seccomp "github.com/seccomp/libseccomp-golang"
)

// seccompProfile is the on-disk filter format: a default action and the
// syscalls excepted from it.
type seccompProfile struct {
	DefaultAction string   `json:"default_action"`
	Syscalls      []string `json:"syscalls"`
}

// applySeccomp loads a JSON profile and installs the filter. With an
// allow-list profile the listed syscalls are permitted and everything else
// returns EPERM; a deny-list profile inverts that.
func applySeccomp(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seccomp profile: %w", err)
	}
	var profile seccompProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return fmt.Errorf("decode seccomp profile: %w", err)
	}

	defaultAction, listedAction, err := actionsFor(profile.DefaultAction)
	if err != nil {
		return err
	}

	filter, err := seccomp.NewFilter(defaultAction)
	if err != nil {
		return fmt.Errorf("create seccomp filter: %w", err)
	}
	defer filter.Release()

	for _, name := range profile.Syscalls {
		sc, err := seccomp.GetSyscallFromName(name)
		if err != nil {
			// Unknown on this kernel; skip rather than fail the run.
			continue
		}
		if err := filter.AddRule(sc, listedAction); err != nil {
			return fmt.Errorf("add seccomp rule for %s: %w", name, err)
		}
	}

	if err := filter.SetNoNewPrivsBit(true); err != nil {
		return fmt.Errorf("set no_new_privs: %w", err)
	}
	if err := filter.Load(); err != nil {
		return fmt.Errorf("load seccomp filter: %w", err)
	}
	return nil
}

func actionsFor(defaultAction string) (seccomp.ScmpAction, seccomp.ScmpAction, error) {
	deny := seccomp.ActErrno.SetReturnCode(1) // EPERM
	switch defaultAction {
	case "", "errno":
		return deny, seccomp.ActAllow, nil
	case "allow":
		return seccomp.ActAllow, deny, nil
	default:
		return 0, 0, fmt.Errorf("unknown seccomp default action %q", defaultAction)
	}
}
