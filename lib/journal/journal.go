// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/treesync/lib/codec"
	"github.com/bureau-foundation/treesync/lib/schema"
)

var magic = [4]byte{'T', 'S', 'J', '1'}

// digestKey separates journal digests from any other BLAKE3 use.
var digestKey = [32]byte{
	't', 'r', 'e', 'e', 's', 'y', 'n', 'c', '.', 'j', 'o', 'u', 'r', 'n', 'a', 'l',
	'.', 'f', 'r', 'a', 'm', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Digest is the chained BLAKE3 digest of a frame.
type Digest [32]byte

func chain(previous Digest, encoded []byte) Digest {
	hasher, err := blake3.NewKeyed(digestKey[:])
	if err != nil {
		panic("journal: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(previous[:])
	hasher.Write(encoded)
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest
}

type frame struct {
	Seq    uint64           `cbor:"seq"`
	Delta  codec.RawMessage `cbor:"delta"`
	Digest []byte           `cbor:"digest"`
}

// CorruptError reports a journal that does not verify.
type CorruptError struct {
	Seq    uint64
	Reason string
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("journal corrupt at frame %d: %s", e.Seq, e.Reason)
}

// IsCorrupt reports whether err wraps a *CorruptError.
func IsCorrupt(err error) bool {
	var corrupt *CorruptError
	return errors.As(err, &corrupt)
}

// Writer appends deltas to a journal. It is safe for concurrent use.
type Writer struct {
	mu         sync.Mutex
	out        io.WriteCloser
	encoder    *codec.Encoder
	closeUnder func() error
	seq        uint64
	previous   Digest
	closed     bool
}

// NewWriter writes the header to w and returns a Writer for the frame
// stream. Close flushes the stream but leaves w open.
func NewWriter(w io.Writer, compression Compression) (*Writer, error) {
	header := append(magic[:], byte(compression))
	if _, err := w.Write(header); err != nil {
		return nil, fmt.Errorf("writing journal header: %w", err)
	}
	out, err := compressor(w, compression)
	if err != nil {
		return nil, err
	}
	return &Writer{out: out, encoder: codec.NewEncoder(out)}, nil
}

// Create creates (or truncates) the journal file at path.
func Create(path string, compression Compression) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating journal: %w", err)
	}
	buffered := bufio.NewWriter(file)
	writer, err := NewWriter(buffered, compression)
	if err != nil {
		file.Close()
		return nil, err
	}
	writer.closeUnder = func() error {
		if err := buffered.Flush(); err != nil {
			file.Close()
			return err
		}
		return file.Close()
	}
	return writer, nil
}

// Append records deltas in order.
func (w *Writer) Append(deltas ...schema.Delta) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("journal: append after close")
	}
	for _, delta := range deltas {
		encoded, err := codec.Marshal(delta)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", delta, err)
		}
		w.seq++
		digest := chain(w.previous, encoded)
		if err := w.encoder.Encode(frame{Seq: w.seq, Delta: encoded, Digest: digest[:]}); err != nil {
			return fmt.Errorf("writing frame %d: %w", w.seq, err)
		}
		w.previous = digest
	}
	return nil
}

// Len returns the number of recorded deltas.
func (w *Writer) Len() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq
}

// Record returns a delivery function that appends deltas to the
// journal and then passes them to next. Deltas are journaled even
// when next rejects them; those are the ones worth replaying.
func (w *Writer) Record(next func([]schema.Delta) error) func([]schema.Delta) error {
	return func(deltas []schema.Delta) error {
		if err := w.Append(deltas...); err != nil {
			return err
		}
		return next(deltas)
	}
}

// Close flushes the frame stream and, for journals made by Create,
// closes the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	err := w.out.Close()
	if w.closeUnder != nil {
		err = errors.Join(err, w.closeUnder())
	}
	return err
}

// Reader reads deltas back from a journal.
type Reader struct {
	decoder     *codec.Decoder
	release     func()
	closeUnder  func() error
	compression Compression
	seq         uint64
	previous    Digest
}

// NewReader checks the header of r and returns a Reader for the frame
// stream.
func NewReader(r io.Reader) (*Reader, error) {
	var header [5]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, &CorruptError{Reason: fmt.Sprintf("reading header: %v", err)}
	}
	if !bytes.Equal(header[:4], magic[:]) {
		return nil, &CorruptError{Reason: "not a treesync journal"}
	}
	compression := Compression(header[4])
	in, release, err := decompressor(r, compression)
	if err != nil {
		return nil, &CorruptError{Reason: err.Error()}
	}
	return &Reader{decoder: codec.NewDecoder(in), release: release, compression: compression}, nil
}

// Open opens the journal file at path.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	reader, err := NewReader(bufio.NewReader(file))
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	reader.closeUnder = file.Close
	return reader, nil
}

func (r *Reader) Compression() Compression { return r.compression }

// IsJournalFile reports whether the file at path starts with the
// journal header.
func IsJournalFile(path string) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer file.Close()
	var header [4]byte
	if _, err := io.ReadFull(file, header[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false, nil
		}
		return false, err
	}
	return header == magic, nil
}

// Next returns the next delta, or io.EOF after the last one.
func (r *Reader) Next() (schema.Delta, error) {
	var next frame
	if err := r.decoder.Decode(&next); err != nil {
		if errors.Is(err, io.EOF) {
			return schema.Delta{}, io.EOF
		}
		return schema.Delta{}, &CorruptError{Seq: r.seq + 1, Reason: err.Error()}
	}
	if next.Seq != r.seq+1 {
		return schema.Delta{}, &CorruptError{Seq: r.seq + 1, Reason: fmt.Sprintf("found frame %d", next.Seq)}
	}
	digest := chain(r.previous, next.Delta)
	if !bytes.Equal(digest[:], next.Digest) {
		return schema.Delta{}, &CorruptError{Seq: next.Seq, Reason: "digest mismatch"}
	}
	var delta schema.Delta
	if err := codec.Unmarshal(next.Delta, &delta); err != nil {
		return schema.Delta{}, &CorruptError{Seq: next.Seq, Reason: fmt.Sprintf("decoding delta: %v", err)}
	}
	r.seq = next.Seq
	r.previous = digest
	return delta, nil
}

// ReadAll returns every remaining delta.
func (r *Reader) ReadAll() ([]schema.Delta, error) {
	var deltas []schema.Delta
	for {
		delta, err := r.Next()
		if errors.Is(err, io.EOF) {
			return deltas, nil
		}
		if err != nil {
			return deltas, err
		}
		deltas = append(deltas, delta)
	}
}

// Close releases the decompressor and, for journals opened by Open,
// closes the file.
func (r *Reader) Close() error {
	r.release()
	if r.closeUnder != nil {
		return r.closeUnder()
	}
	return nil
}
