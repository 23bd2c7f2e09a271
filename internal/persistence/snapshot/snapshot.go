// Package snapshot writes and reads full economy exports: a zstd stream
// holding one JSON header line followed by a gob-encoded State. The header
// carries a blake3 checksum of the gob payload.
package snapshot

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"lukechampine.com/blake3"

	"github.com/goodhanky/emago/internal/sim/model"
)

const Version = 1

type Header struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Players   int       `json:"players"`
	Planets   int       `json:"planets"`
	Queues    int       `json:"queues"`

	// CatalogDigest identifies the rules the state was produced under.
	CatalogDigest string `json:"catalog_digest,omitempty"`
	Checksum      string `json:"checksum"`
}

type State struct {
	Players  []model.Player
	Planets  []model.Planet
	Research map[string]model.ResearchLevels // by player id
	Queues   []model.QueueEntry
}

type SnapshotV1 struct {
	Header Header
	State  State
}

func Write(path string, snap SnapshotV1) error {
	var body bytes.Buffer
	if err := gob.NewEncoder(&body).Encode(&snap.State); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	sum := blake3.Sum256(body.Bytes())

	h := snap.Header
	h.Version = Version
	h.Players = len(snap.State.Players)
	h.Planets = len(snap.State.Planets)
	h.Queues = len(snap.State.Queues)
	h.Checksum = hex.EncodeToString(sum[:])
	hb, err := json.Marshal(h)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = f.Close()
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)
	_, err = bw.Write(append(hb, '\n'))
	if err == nil {
		_, err = bw.Write(body.Bytes())
	}
	if err == nil {
		err = bw.Flush()
	}
	if cerr := enc.Close(); err == nil {
		err = cerr
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadHeader returns only the header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()
	h, err = readHeader(bufio.NewReaderSize(dec, 64*1024))
	return h, err
}

func Read(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	snap.Header, err = readHeader(br)
	if err != nil {
		return snap, err
	}
	body, err := io.ReadAll(br)
	if err != nil {
		return snap, err
	}
	sum := blake3.Sum256(body)
	if got := hex.EncodeToString(sum[:]); got != snap.Header.Checksum {
		return snap, fmt.Errorf("snapshot checksum mismatch: header=%s body=%s", snap.Header.Checksum, got)
	}
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&snap.State); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

func readHeader(br *bufio.Reader) (Header, error) {
	var h Header
	line, err := br.ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	if h.Version != Version {
		return h, fmt.Errorf("unsupported snapshot version %d", h.Version)
	}
	return h, nil
}
