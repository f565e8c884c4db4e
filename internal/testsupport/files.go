package testsupport

import (
	"context"
	"testing"

	"newscastd/internal/artifact"
)

// SeedArtifact writes raw bytes under key in the artifact store.
func SeedArtifact(t testing.TB, store *artifact.Store, key string, data []byte) {
	t.Helper()

	if err := store.Put(context.Background(), key, data); err != nil {
		t.Fatalf("seed artifact %s: %v", key, err)
	}
}

// MP3Frame returns a buffer beginning with a valid MPEG frame sync header,
// padded out to size bytes.
func MP3Frame(size int) []byte {
	if size < 4 {
		size = 4
	}
	buf := make([]byte, size)
	copy(buf, []byte{0xFF, 0xFB, 0x90, 0x64})
	for i := 4; i < size; i++ {
		buf[i] = byte(i % 251)
	}
	return buf
}
