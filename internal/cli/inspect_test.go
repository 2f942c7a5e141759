package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	bwerrors "github.com/matzehuels/blockworld/pkg/errors"
	"github.com/matzehuels/blockworld/pkg/scene"
)

const sampleMarkup = `<m-group>
  <m-cube id="a" x="1" color="#ff0000"></m-cube>
  <m-cube id="b" x="-1"></m-cube>
  <m-sphere y="2"></m-sphere>
  <m-blob></m-blob>
</m-group>`

func writeMarkup(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scene.html")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCountTableOrder(t *testing.T) {
	out := countTable(map[string]int{"m-cube": 2, "m-group": 1, "m-sphere": 1})
	cube := strings.Index(out, "m-cube")
	group := strings.Index(out, "m-group")
	sphere := strings.Index(out, "m-sphere")
	if cube < 0 || group < 0 || sphere < 0 {
		t.Fatalf("countTable() missing rows:\n%s", out)
	}
	if cube > group || group > sphere {
		t.Errorf("rows should be sorted by count, then tag:\n%s", out)
	}
}

func TestReadMarkup(t *testing.T) {
	doc, err := readMarkup(writeMarkup(t, sampleMarkup))
	if err != nil {
		t.Fatalf("readMarkup() error: %v", err)
	}
	if len(doc.Warnings) == 0 {
		t.Error("unknown tag should produce a warning")
	}

	_, err = readMarkup(filepath.Join(t.TempDir(), "missing.html"))
	if !bwerrors.Is(err, bwerrors.ErrCodeNotFound) {
		t.Errorf("missing file error = %v, want NOT_FOUND", err)
	}
}

func TestRunInspectTree(t *testing.T) {
	c := testCLI()
	input := writeMarkup(t, sampleMarkup)
	tree := filepath.Join(t.TempDir(), "tree.dot")

	if err := c.runInspect(context.Background(), input, &inspectOpts{tree: tree, detailed: true}); err != nil {
		t.Fatalf("runInspect() error: %v", err)
	}
	data, err := os.ReadFile(tree)
	if err != nil {
		t.Fatal(err)
	}
	dot := string(data)
	if !strings.HasPrefix(dot, "digraph") {
		t.Errorf("tree should be DOT source, got %q", dot[:min(len(dot), 30)])
	}
	if !strings.Contains(dot, "m-cube#a") {
		t.Errorf("tree should label named nodes:\n%s", dot)
	}
}

func TestWriteTreeUnsupported(t *testing.T) {
	s, err := buildPreviewScene(context.Background(), sampleMarkup)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	err = writeTree(s, filepath.Join(t.TempDir(), "tree.pdf"), false)
	if !bwerrors.Is(err, bwerrors.ErrCodeUnsupported) {
		t.Errorf("writeTree(.pdf) error = %v, want UNSUPPORTED", err)
	}
}

func TestPrintMediaReportCountsOnlyMedia(t *testing.T) {
	s, err := buildPreviewScene(context.Background(), `<m-group><m-image src="missing.png"></m-image></m-group>`)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if got := s.Count(scene.KindImage); got != 1 {
		t.Fatalf("image count = %d, want 1", got)
	}
	printMediaReport(s)
}
