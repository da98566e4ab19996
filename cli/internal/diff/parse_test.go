package diff

import (
	"strings"
	"testing"
)

func TestParseFiles_empty(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
	}{
		{"empty string", ""},
		{"whitespace only", "   \n\t\n  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFiles(tt.in)
			if err != nil {
				t.Fatalf("ParseFiles: %v", err)
			}
			if got != nil {
				t.Errorf("ParseFiles = %v, want nil", got)
			}
		})
	}
}

func TestParseFiles_singleFileSingleHunk(t *testing.T) {
	t.Parallel()
	diff := `diff --git a/foo.go b/foo.go
index abc123..def456 100644
--- a/foo.go
+++ b/foo.go
@@ -1,3 +1,4 @@
 package main
+
 func main() {
-	println("hello")
+	println("hello, world")
`
	got, err := ParseFiles(diff)
	if err != nil {
		t.Fatalf("ParseFiles: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(files) = %d, want 1", len(got))
	}
	f := got[0]
	if f.Path != "foo.go" || f.OldPath != "" {
		t.Errorf("Path = %q OldPath = %q", f.Path, f.OldPath)
	}
	if f.Added() != 2 || f.Removed() != 1 {
		t.Errorf("Added = %d Removed = %d, want 2 and 1", f.Added(), f.Removed())
	}
	if len(f.Hunks) != 1 || !strings.HasPrefix(f.Hunks[0], "@@ -1,3 +1,4 @@") {
		t.Errorf("Hunks = %q", f.Hunks)
	}
	if f.AddedLines[1] != "\tprintln(\"hello, world\")" {
		t.Errorf("AddedLines = %q", f.AddedLines)
	}
}

func TestParseFiles_multipleHunks(t *testing.T) {
	t.Parallel()
	diff := `diff --git a/x.go b/x.go
--- a/x.go
+++ b/x.go
@@ -1,2 +1,2 @@
-a
+b
@@ -5,1 +5,2 @@
 c
+d
`
	got, err := ParseFiles(diff)
	if err != nil {
		t.Fatalf("ParseFiles: %v", err)
	}
	if len(got) != 1 || len(got[0].Hunks) != 2 {
		t.Fatalf("got %+v, want one file with two hunks", got)
	}
	if got[0].Added() != 2 || got[0].Removed() != 1 {
		t.Errorf("counts = +%d -%d", got[0].Added(), got[0].Removed())
	}
}

func TestParseFiles_newDeletedRenamedBinary(t *testing.T) {
	t.Parallel()
	diff := `diff --git a/new.txt b/new.txt
new file mode 100644
index 0000000..1111111
--- /dev/null
+++ b/new.txt
@@ -0,0 +1,2 @@
+one
+two
diff --git a/gone.txt b/gone.txt
deleted file mode 100644
index 2222222..0000000
--- a/gone.txt
+++ /dev/null
@@ -1 +0,0 @@
-bye
diff --git a/old name.go b/new name.go
similarity index 90%
rename from old name.go
rename to new name.go
index 3333333..4444444 100644
--- a/old name.go
+++ b/new name.go
@@ -1 +1 @@
-x
+y
diff --git a/img.png b/img.png
index 5555555..6666666 100644
Binary files a/img.png and b/img.png differ
`
	got, err := ParseFiles(diff)
	if err != nil {
		t.Fatalf("ParseFiles: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("len(files) = %d, want 4", len(got))
	}
	byPath := ByPath(got)
	if f := byPath["new.txt"]; f.Added() != 2 || f.Removed() != 0 {
		t.Errorf("new.txt = %+v", f)
	}
	if f := byPath["gone.txt"]; f.Removed() != 1 {
		t.Errorf("gone.txt = %+v", f)
	}
	if f := byPath["new name.go"]; f.OldPath != "old name.go" {
		t.Errorf("rename = %+v", f)
	}
	if f := byPath["img.png"]; !f.Binary || f.Added() != 0 {
		t.Errorf("binary = %+v", f)
	}
}

func TestParseFiles_noNewlineMarkerAndCRLF(t *testing.T) {
	t.Parallel()
	diff := "diff --git a/w.txt b/w.txt\r\n--- a/w.txt\r\n+++ b/w.txt\r\n@@ -1 +1 @@\r\n-old\r\n\\ No newline at end of file\r\n+new\r\n"
	got, err := ParseFiles(diff)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].AddedLines[0] != "new" || got[0].RemovedLines[0] != "old" {
		t.Errorf("lines = %q / %q", got[0].AddedLines, got[0].RemovedLines)
	}
}

func TestParseDiffGitLine(t *testing.T) {
	t.Parallel()
	tests := []struct {
		line  string
		wantA string
		wantB string
	}{
		{"diff --git a/foo.go b/foo.go", "foo.go", "foo.go"},
		{"diff --git a/dir/with space.go b/dir/with space.go", "dir/with space.go", "dir/with space.go"},
		{"diff --git x y", "x", "y"},
	}
	for _, tt := range tests {
		a, b := parseDiffGitLine(tt.line)
		if a != tt.wantA || b != tt.wantB {
			t.Errorf("parseDiffGitLine(%q) = %q, %q", tt.line, a, b)
		}
	}
}
