package spec

import "testing"

func TestMergeOverridePositiveFields(t *testing.T) {
	base := ResourceLimit{CPUTimeMs: 1000, WallTimeMs: 2000, MemoryMB: 64, PIDs: 16}
	override := ResourceLimit{CPUTimeMs: 500, MemoryMB: 128}

	merged := Merge(base, override)
	if merged.CPUTimeMs != 500 {
		t.Fatalf("cpu = %d, want 500", merged.CPUTimeMs)
	}
	if merged.MemoryMB != 128 {
		t.Fatalf("memory = %d, want 128", merged.MemoryMB)
	}
	// Zero override fields keep the base.
	if merged.WallTimeMs != 2000 || merged.PIDs != 16 {
		t.Fatalf("merged = %+v", merged)
	}
}

func TestMergeEmptyOverride(t *testing.T) {
	base := ResourceLimit{CPUTimeMs: 1000, OutputMaxBytes: 4096, StackMB: 8}
	merged := Merge(base, ResourceLimit{})
	if merged != base {
		t.Fatalf("merged = %+v, want %+v", merged, base)
	}
}
