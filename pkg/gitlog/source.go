package gitlog

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pierrec/lz4/v4"
)

// ErrLogTooLarge is returned when the input exceeds Options.MaxBytes.
var ErrLogTooLarge = errors.New("log exceeds size limit")

// lz4Magic is the little-endian lz4 frame magic number 0x184D2204.
var lz4Magic = []byte{0x04, 0x22, 0x4d, 0x18}

// Decompress returns a reader yielding plain log text. lz4 frames are
// detected by their magic number; anything else is passed through.
func Decompress(r io.Reader) (io.Reader, error) {
	buffered := bufio.NewReader(r)

	head, err := buffered.Peek(len(lz4Magic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("sniff log encoding: %w", err)
	}

	if bytes.Equal(head, lz4Magic) {
		return lz4.NewReader(buffered), nil
	}

	return buffered, nil
}

// ParseFile opens path, transparently decompressing lz4, and parses it.
// The file is closed before returning, also on failure.
func ParseFile(ctx context.Context, path string, opts Options) (commits []Commit, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}

	defer func() {
		closeErr := file.Close()
		if closeErr != nil && err == nil {
			err = fmt.Errorf("close log: %w", closeErr)
		}
	}()

	reader, err := Decompress(file)
	if err != nil {
		return nil, err
	}

	return Parse(ctx, reader, opts)
}

// boundedReader fails with ErrLogTooLarge instead of silently truncating.
type boundedReader struct {
	r         io.Reader
	remaining int64
	limit     int64
}

func (b *boundedReader) Read(buf []byte) (int, error) {
	if b.remaining <= 0 {
		// Probe for more data so that an input of exactly limit bytes passes.
		var probe [1]byte

		n, err := b.r.Read(probe[:])
		if n > 0 {
			return 0, fmt.Errorf("%w: more than %d bytes", ErrLogTooLarge, b.limit)
		}

		return 0, err //nolint:wrapcheck // io.EOF must reach the scanner unwrapped.
	}

	if int64(len(buf)) > b.remaining {
		buf = buf[:b.remaining]
	}

	n, err := b.r.Read(buf)
	b.remaining -= int64(n)

	return n, err //nolint:wrapcheck // io.EOF must reach the scanner unwrapped.
}
