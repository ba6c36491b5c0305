package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// probeBufferSize is the amount of data written during a write-speed probe.
const probeBufferSize = 5 * 1024 * 1024

// FallbackWriteBPS is used when the write-speed probe fails for any reason.
const FallbackWriteBPS = 50 * 1024 * 1024

// MeasureWriteSpeed writes a probeBufferSize buffer to a temp file under
// cacheDir and times the fsync'd close, returning bytes/sec. On any error it
// returns FallbackWriteBPS, treating the destination as a conservative
// 50 MiB/s device.
func MeasureWriteSpeed(cacheDir string) int64 {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return FallbackWriteBPS
	}

	probePath := filepath.Join(cacheDir, fmt.Sprintf(".storax-speed-probe-%d", time.Now().UnixNano()))
	defer os.Remove(probePath)

	f, err := os.Create(probePath)
	if err != nil {
		return FallbackWriteBPS
	}

	buf := make([]byte, probeBufferSize)
	start := time.Now()

	if _, err := f.Write(buf); err != nil {
		f.Close()
		return FallbackWriteBPS
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return FallbackWriteBPS
	}
	if err := f.Close(); err != nil {
		return FallbackWriteBPS
	}

	elapsed := time.Since(start)
	if elapsed <= 0 {
		return FallbackWriteBPS
	}

	return int64(float64(probeBufferSize) / elapsed.Seconds())
}
