package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/zeebo/xxh3"
)

// SourceConfig tunes RunSource.
type SourceConfig struct {
	ChunkSize  int
	ReadBuffer int
	// Digest, if set, receives every byte read from the input.
	Digest *xxh3.Hasher
}

// RunSource splits r into lines and sends them downstream in chunks of at
// most cfg.ChunkSize non-blank lines. The final partial chunk is sent at EOF
// if it is not empty. out is closed on every return path.
//
// Lines may be arbitrarily long; the read buffer only bounds how much is
// fetched from r per call.
func RunSource(ctx context.Context, r io.Reader, cfg SourceConfig, out chan<- LineChunk, c *Counters) error {
	defer close(out)

	size := cfg.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	bufSize := cfg.ReadBuffer
	if bufSize <= 0 {
		bufSize = DefaultReadBuffer
	}
	if cfg.Digest != nil {
		r = io.TeeReader(r, cfg.Digest)
	}
	br := bufio.NewReaderSize(r, bufSize)

	var (
		seq     int64
		lineNo  int64
		scratch []byte
	)
	chunk := newLineChunk(seq, size)

	send := func() error {
		select {
		case out <- chunk:
		case <-ctx.Done():
			return ctx.Err()
		}
		c.Chunks.Add(1)
		seq++
		chunk = newLineChunk(seq, size)
		return nil
	}

	for {
		line, err := readLine(br, &scratch)
		if len(line) > 0 {
			lineNo++
			line = trimEOL(line)
			if len(bytes.TrimSpace(line)) == 0 {
				c.BlankLines.Add(1)
			} else {
				chunk.Lines = append(chunk.Lines, bytes.Clone(line))
				chunk.LineNos = append(chunk.LineNos, lineNo)
				c.LinesRead.Add(1)
				if len(chunk.Lines) >= size {
					if err := send(); err != nil {
						return err
					}
				}
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read line %d: %w", lineNo+1, err)
		}
	}

	if len(chunk.Lines) > 0 {
		return send()
	}
	return nil
}

func newLineChunk(seq int64, size int) LineChunk {
	return LineChunk{
		Seq:     seq,
		Lines:   make([][]byte, 0, size),
		LineNos: make([]int64, 0, size),
	}
}

// readLine returns the next line including its terminator. The result is
// only valid until the next call.
func readLine(br *bufio.Reader, scratch *[]byte) ([]byte, error) {
	line, err := br.ReadSlice('\n')
	if !errors.Is(err, bufio.ErrBufferFull) {
		return line, err
	}
	buf := append((*scratch)[:0], line...)
	for errors.Is(err, bufio.ErrBufferFull) {
		line, err = br.ReadSlice('\n')
		buf = append(buf, line...)
	}
	*scratch = buf
	return buf, err
}

func trimEOL(b []byte) []byte {
	b = bytes.TrimSuffix(b, []byte{'\n'})
	return bytes.TrimSuffix(b, []byte{'\r'})
}
