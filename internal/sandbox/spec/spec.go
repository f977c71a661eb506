// Package spec defines the execution specification and resource limits.
package spec

// ResourceLimit describes hard limits enforced by the sandbox.
type ResourceLimit struct {
	CPUTimeMs      int64 `yaml:"cpuTimeMs"`
	WallTimeMs     int64 `yaml:"wallTimeMs"`
	MemoryMB       int64 `yaml:"memoryMB"`
	StackMB        int64 `yaml:"stackMB"`
	OutputMaxBytes int64 `yaml:"outputMaxBytes"`
	PIDs           int64 `yaml:"pids"`
}

// Merge returns base with any positive fields of override applied on top.
func Merge(base, override ResourceLimit) ResourceLimit {
	if override.CPUTimeMs > 0 {
		base.CPUTimeMs = override.CPUTimeMs
	}
	if override.WallTimeMs > 0 {
		base.WallTimeMs = override.WallTimeMs
	}
	if override.MemoryMB > 0 {
		base.MemoryMB = override.MemoryMB
	}
	if override.StackMB > 0 {
		base.StackMB = override.StackMB
	}
	if override.OutputMaxBytes > 0 {
		base.OutputMaxBytes = override.OutputMaxBytes
	}
	if override.PIDs > 0 {
		base.PIDs = override.PIDs
	}
	return base
}

// MountSpec describes a bind mount inside the sandbox.
type MountSpec struct {
	Source   string
	Target   string
	ReadOnly bool
}

// RunSpec is the unified execution specification for one task.
type RunSpec struct {
	SubmissionID string
	TaskID       string
	WorkDir      string
	Cmd          []string
	Env          []string
	StdinPath    string
	StdoutPath   string
	StderrPath   string
	BindMounts   []MountSpec
	Profile      string
	Limits       ResourceLimit
}
