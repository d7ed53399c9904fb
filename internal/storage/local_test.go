package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLocalPutAndDelete(t *testing.T) {
	dir := t.TempDir()
	l := NewLocal(dir, "/uploads/")

	res, err := l.Put(context.Background(), strings.NewReader("jpeg bytes"), PutInput{
		Filename:    "landcruiser.JPG",
		ContentType: "image/jpeg",
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	if !strings.HasSuffix(res.Key, ".jpg") {
		t.Errorf("Key = %q, want lowercased .jpg extension", res.Key)
	}
	wantShard := time.Now().Format("2006/01") + "/"
	if !strings.HasPrefix(res.Key, wantShard) {
		t.Errorf("Key = %q, want %s prefix", res.Key, wantShard)
	}
	if res.URL != "/uploads/"+res.Key {
		t.Errorf("URL = %q, want /uploads/%s", res.URL, res.Key)
	}

	raw, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(res.Key)))
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(raw) != "jpeg bytes" {
		t.Errorf("stored content = %q", raw)
	}

	if err := l.Delete(context.Background(), res.Key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(res.Key))); !os.IsNotExist(err) {
		t.Errorf("file still present after delete")
	}
}

func TestLocalStripsUntrustedExtension(t *testing.T) {
	l := NewLocal(t.TempDir(), "/uploads")

	res, err := l.Put(context.Background(), strings.NewReader("x"), PutInput{Filename: "evil.php"})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if filepath.Ext(res.Key) != "" {
		t.Errorf("Key = %q, want no extension for untrusted type", res.Key)
	}
}

func TestLocalDeleteRejectsTraversal(t *testing.T) {
	l := NewLocal(t.TempDir(), "/uploads")

	for _, key := range []string{"../etc/passwd", "/etc/passwd", "."} {
		if err := l.Delete(context.Background(), key); err == nil {
			t.Errorf("Delete(%q): expected refusal", key)
		}
	}
}
