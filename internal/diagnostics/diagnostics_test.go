package diagnostics

import "testing"

func TestFreeBytes(t *testing.T) {
	free, err := FreeBytes(t.TempDir())
	if err != nil {
		t.Fatalf("FreeBytes: %v", err)
	}
	if free == 0 {
		t.Error("FreeBytes reported an empty volume for a writable temp dir")
	}
}

func TestCheckTargetDir(t *testing.T) {
	// A freshly created temp dir should comfortably clear the floor.
	if err := CheckTargetDir(t.TempDir()); err != nil {
		t.Errorf("CheckTargetDir: %v", err)
	}
}

func TestDiskUsage(t *testing.T) {
	du := DiskUsage(t.TempDir())
	if du.TotalGB <= 0 {
		t.Skip("disk stats unavailable in this environment")
	}
	if du.FreeGB > du.TotalGB {
		t.Errorf("free %v exceeds total %v", du.FreeGB, du.TotalGB)
	}
}
