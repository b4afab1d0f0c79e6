// Package store saves and loads record snapshots. A snapshot is a gob or
// msgpack encoded Snapshot value, optionally zstd compressed; compressed
// files are recognised on load by their frame magic.
package store

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kass/go-geospatial/pkg/log"
	"github.com/kass/go-geospatial/pkg/models"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

type Codec string

const (
	Gob     Codec = "gob"
	Msgpack Codec = "msgpack"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

func init() {
	// attribute values travel as interfaces
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register(time.Time{})
}

// Snapshot is the serialised form of a record set.
type Snapshot struct {
	Records []models.Record `msgpack:"records"`
	Count   int             `msgpack:"count"`
	Created time.Time       `msgpack:"created"`
}

type Options struct {
	Codec    Codec
	Compress bool
}

// ParseCodec maps a codec name to a Codec.
func ParseCodec(s string) (Codec, error) {
	switch c := Codec(s); c {
	case Gob, Msgpack:
		return c, nil
	case "":
		return Msgpack, nil
	default:
		return "", fmt.Errorf("unknown snapshot codec %q", s)
	}
}

// Write encodes records to w.
func Write(w io.Writer, records []models.Record, opts Options) error {
	codec, err := ParseCodec(string(opts.Codec))
	if err != nil {
		return err
	}

	var zw *zstd.Encoder
	if opts.Compress {
		zw, err = zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return fmt.Errorf("failed to create zstd writer: %w", err)
		}
		defer zw.Close()
		w = zw
	}

	snap := Snapshot{Records: records, Count: len(records), Created: time.Now().UTC()}
	switch codec {
	case Gob:
		err = gob.NewEncoder(w).Encode(snap)
	case Msgpack:
		err = msgpack.NewEncoder(w).Encode(snap)
	}
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if zw != nil {
		if err := zw.Close(); err != nil {
			return fmt.Errorf("failed to close zstd writer: %w", err)
		}
	}
	return nil
}

// Read decodes a snapshot written by Write with the same codec.
func Read(r io.Reader, codec Codec) (Snapshot, error) {
	var snap Snapshot
	codec, err := ParseCodec(string(codec))
	if err != nil {
		return snap, err
	}

	br := bufio.NewReader(r)
	if magic, _ := br.Peek(len(zstdMagic)); bytes.Equal(magic, zstdMagic) {
		zr, err := zstd.NewReader(br)
		if err != nil {
			return snap, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		defer zr.Close()
		r = zr
	} else {
		r = br
	}

	switch codec {
	case Gob:
		err = gob.NewDecoder(r).Decode(&snap)
	case Msgpack:
		err = msgpack.NewDecoder(r).Decode(&snap)
	}
	if err != nil {
		return snap, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snap.Count != len(snap.Records) {
		return snap, fmt.Errorf("corrupt snapshot: header counts %d records, found %d", snap.Count, len(snap.Records))
	}
	return snap, nil
}

// SaveToFile writes records to filename.
func SaveToFile(filename string, records []models.Record, opts Options, lg *log.Logger) error {
	start := time.Now()
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := Write(file, records, opts); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	lg.Timed("saved snapshot", start, "file", filename, "records", len(records), "codec", string(opts.Codec), "compress", opts.Compress)
	return nil
}

// LoadFromFile reads the records stored in filename.
func LoadFromFile(filename string, codec Codec, lg *log.Logger) ([]models.Record, error) {
	start := time.Now()
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	snap, err := Read(file, codec)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	lg.Timed("loaded snapshot", start, "file", filename, "records", len(snap.Records), "created", snap.Created)
	return snap.Records, nil
}
