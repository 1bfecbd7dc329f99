package fifo

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bridge")
	tr, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payload := []byte{1, 2, 3, 4, 5}

	done := make(chan error, 1)
	go func() {
		_, err := tr.Write(ctx, payload)
		done <- err
	}()

	// Open a second handle to the command pipe? The reply pipe is what
	// the host side reads; simulate that by opening the same fifo file
	// a second time for reading, mirroring how a bridge host process
	// would attach to the same named pipe.
	readSide, err := os.OpenFile(filepath.Join(dir, pipeReply), os.O_RDONLY, 0)
	if err != nil {
		t.Fatalf("open reply pipe for reading: %v", err)
	}
	defer readSide.Close()

	buf := make([]byte, headerSize+len(payload))
	readSide.SetReadDeadline(time.Now().Add(5 * time.Second))
	n, err := io.ReadFull(readSide, buf)
	if err != nil {
		t.Fatalf("read from reply pipe: %v", err)
	}

	if err := <-done; err != nil {
		t.Fatalf("Write: %v", err)
	}

	if n < headerSize {
		t.Fatalf("short read: %d bytes", n)
	}
	if got := binary.LittleEndian.Uint32(buf[:headerSize]); got != uint32(len(payload)) {
		t.Fatalf("length prefix = %d, want %d", got, len(payload))
	}
	if !bytes.Equal(buf[headerSize:n], payload) {
		t.Fatalf("payload = %v, want %v", buf[headerSize:n], payload)
	}
}
