package audio

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/luisa-bot-go/pkg/logger"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("audio"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadPresets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Fala Galera.mp3"))
	writeFile(t, filepath.Join(dir, "bora_jogar.ogg"))
	writeFile(t, filepath.Join(dir, "que-isso-MANO.WAV"))
	writeFile(t, filepath.Join(dir, "README.txt"))
	if err := os.Mkdir(filepath.Join(dir, "nested.mp3"), 0755); err != nil {
		t.Fatal(err)
	}

	registry, err := LoadPresets(dir)
	if err != nil {
		t.Fatal(err)
	}

	want := []Preset{
		{ID: "bora_jogar", Name: "Bora Jogar", Filename: "bora_jogar.ogg"},
		{ID: "fala_galera", Name: "Fala Galera", Filename: "Fala Galera.mp3"},
		{ID: "que-isso-mano", Name: "Que Isso Mano", Filename: "que-isso-MANO.WAV"},
	}
	got := registry.List()
	if len(got) != len(want) {
		t.Fatalf("List() = %+v", got)
	}
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Name != want[i].Name || got[i].Filename != want[i].Filename {
			t.Errorf("preset %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	p, ok := registry.Lookup("fala_galera")
	if !ok || p.Path != filepath.Join(dir, "Fala Galera.mp3") {
		t.Fatalf("Lookup = %+v, %v", p, ok)
	}
	if _, ok := registry.Lookup("nope"); ok {
		t.Fatal("unexpected preset")
	}
}

func TestLoadPresetsMissingDir(t *testing.T) {
	registry, err := LoadPresets(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatal(err)
	}
	if registry.Len() != 0 {
		t.Fatalf("Len = %d", registry.Len())
	}
}

func TestCleaner(t *testing.T) {
	dir := t.TempDir()
	later := filepath.Join(dir, "later.mp3")
	now := filepath.Join(dir, "now.mp3")
	writeFile(t, later)
	writeFile(t, now)

	slow := NewCleaner(time.Hour, logger.Discard())
	slow.Schedule(later)
	slow.Schedule(later)
	if slow.Pending() != 1 {
		t.Fatalf("Pending = %d", slow.Pending())
	}
	if _, err := os.Stat(later); err != nil {
		t.Fatal("file deleted before the delay")
	}
	slow.Flush()
	if _, err := os.Stat(later); !os.IsNotExist(err) {
		t.Fatal("Flush did not delete the file")
	}

	fast := NewCleaner(time.Millisecond, logger.Discard())
	fast.Schedule(now)
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(now); os.IsNotExist(err) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("file not deleted after the delay")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
