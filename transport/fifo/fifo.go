// Package fifo implements mtp.Transport over three named pipes, for
// running the responder against a host process on the same machine
// without real USB hardware — the same bridging trick the teacher's
// device/hal/fifo HAL uses for USB endpoints.
package fifo

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/ardnew/mtpresponder/mtp"
	"github.com/ardnew/mtpresponder/pkg"
)

// Compile-time interface check.
var _ mtp.Transport = (*Transport)(nil)

const (
	pipeCommand = "command" // host -> device: Command/Data-in containers
	pipeReply   = "reply"   // device -> host: Data-out/Response containers
	pipeEvent   = "event"   // device -> host: Event containers
)

const headerSize = 4 // u32 little-endian length prefix

// Transport implements mtp.Transport using three named pipes rooted at
// dir. The host side of the bridge is expected to create the same
// directory layout and dial the pipes in the complementary direction.
type Transport struct {
	dir string

	mu       sync.Mutex
	command  *os.File
	reply    *os.File
	event    *os.File
	readBuf  [64 * 1024]byte
	writeBuf [64 * 1024]byte
}

// New creates the three named pipes under dir and opens them. dir is
// created if it does not exist.
func New(dir string) (*Transport, error) {
	t := &Transport{dir: dir}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create fifo dir: %w", err)
	}
	for _, name := range []string{pipeCommand, pipeReply, pipeEvent} {
		path := filepath.Join(dir, name)
		os.Remove(path)
		if err := syscall.Mkfifo(path, 0o666); err != nil {
			return nil, fmt.Errorf("mkfifo %s: %w", name, err)
		}
	}

	var err error
	t.command, err = os.OpenFile(filepath.Join(dir, pipeCommand), os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open command pipe: %w", err)
	}
	t.reply, err = os.OpenFile(filepath.Join(dir, pipeReply), os.O_RDWR, 0)
	if err != nil {
		t.command.Close()
		return nil, fmt.Errorf("open reply pipe: %w", err)
	}
	t.event, err = os.OpenFile(filepath.Join(dir, pipeEvent), os.O_RDWR, 0)
	if err != nil {
		t.command.Close()
		t.reply.Close()
		return nil, fmt.Errorf("open event pipe: %w", err)
	}

	pkg.LogInfo(pkg.ComponentTransport, "fifo transport ready", "dir", dir)
	return t, nil
}

// Close closes the pipes and removes the directory and its contents.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.command.Close()
	t.reply.Close()
	t.event.Close()
	return os.RemoveAll(t.dir)
}

// Read delivers the next length-prefixed message from the command
// pipe into buf.
func (t *Transport) Read(ctx context.Context, buf []byte) (int, error) {
	return readFramed(ctx, t.command, buf)
}

// Write sends buf as a length-prefixed message on the reply pipe.
func (t *Transport) Write(ctx context.Context, buf []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := writeFramed(ctx, t.reply, buf); err != nil {
		return 0, err
	}
	return len(buf), nil
}

// SendEvent sends buf as a length-prefixed message on the event pipe.
func (t *Transport) SendEvent(ctx context.Context, buf []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := writeFramed(ctx, t.event, buf); err != nil {
		return 0, err
	}
	return len(buf), nil
}

func readFramed(ctx context.Context, f *os.File, buf []byte) (int, error) {
	var hdr [headerSize]byte
	if _, err := readFullWithContext(ctx, f, hdr[:]); err != nil {
		return 0, err
	}
	length := int(binary.LittleEndian.Uint32(hdr[:]))
	if length > len(buf) {
		return 0, pkg.ErrCodecShortWrite
	}
	if length == 0 {
		return 0, nil
	}
	return readFullWithContext(ctx, f, buf[:length])
}

func writeFramed(ctx context.Context, f *os.File, data []byte) error {
	var hdr [headerSize]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(data)))
	if _, err := f.Write(hdr[:]); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	_, err := f.Write(data)
	return err
}

// readFullWithContext reads exactly len(buf) bytes, polling with a
// short deadline so ctx cancellation is observed promptly — the same
// pattern the teacher's fifo HAL uses for its named-pipe reads.
func readFullWithContext(ctx context.Context, f *os.File, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}
		f.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, err := f.Read(buf[total:])
		if n > 0 {
			total += n
		}
		if err != nil {
			if os.IsTimeout(err) {
				continue
			}
			if err == io.EOF {
				continue
			}
			return total, err
		}
	}
	return total, nil
}
