package safepath

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsSafe_lexical(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "videos")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "a.mp4"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		req  string
		want bool
	}{
		{name: "root itself", req: root, want: true},
		{name: "direct child", req: filepath.Join(root, "videos"), want: true},
		{name: "nested file", req: filepath.Join(root, "videos", "a.mp4"), want: true},
		{name: "dangling child", req: filepath.Join(root, "videos", "missing.mkv"), want: true},
		{name: "dotdot escape", req: filepath.Join(root, ".."), want: false},
		{name: "dotdot through child", req: filepath.Join(root, "videos", "..", "..", "etc"), want: false},
		{name: "absolute outside", req: "/etc/passwd", want: false},
		{name: "sibling prefix", req: root + "suffix", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSafe(root, tt.req); got != tt.want {
				t.Fatalf("IsSafe(%q, %q) = %v, want %v", root, tt.req, got, tt.want)
			}
		})
	}
}

func TestIsSafe_symlinkEscape(t *testing.T) {
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.txt")
	if err := os.WriteFile(secret, []byte("top"), 0o644); err != nil {
		t.Fatal(err)
	}

	root := t.TempDir()
	link := filepath.Join(root, "innocent.mp4")
	if err := os.Symlink(secret, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	// Lexically inside the root, physically outside after resolution.
	if IsSafe(root, link) {
		t.Fatal("symlink pointing outside the root must be rejected")
	}

	// A symlinked directory escape must be caught for paths through it too.
	dirLink := filepath.Join(root, "shows")
	if err := os.Symlink(outside, dirLink); err != nil {
		t.Fatal(err)
	}
	if IsSafe(root, filepath.Join(dirLink, "secret.txt")) {
		t.Fatal("path through an escaping symlinked directory must be rejected")
	}
}

func TestIsSafe_symlinkWithinRoot(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "real.mp4")
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(root, "alias.mp4")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	if !IsSafe(root, link) {
		t.Fatal("symlink resolving inside the root should be allowed")
	}
}
