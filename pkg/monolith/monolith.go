// Package monolith exports a whole workflow run (page graph, State Store,
// history and task records) as one portable blob, and imports it back.
//
// Layout:
//
//	"MPWM" | major minor patch | zstd(JSON document)
//
// The JSON document is {pages, snapshot, assets, meta}. Numbers are decoded as
// json.Number, so every State Store value survives the round trip unchanged.
package monolith

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/aretw0/multipage/pkg/domain"
	"github.com/aretw0/multipage/pkg/graph"
)

// Magic opens every monolith.
const Magic = "MPWM"

const headerLen = len(Magic) + 3

// maxDecodedSize bounds the decompressed document.
const maxDecodedSize = 256 << 20

var (
	ErrBadMagic        = errors.New("not a monolith")
	ErrTruncated       = errors.New("truncated blob")
	ErrVersionMismatch = errors.New("format version mismatch")
	ErrInconsistent    = errors.New("snapshot does not match graph")
)

// Version is the format version triple.
type Version struct {
	Major, Minor, Patch uint8
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// FormatVersion is written by Export. Import rejects a different major.
var FormatVersion = Version{Major: 1, Minor: 0, Patch: 0}

// Meta describes the export.
type Meta struct {
	Name      string    `json:"name,omitempty"`
	Generator string    `json:"generator,omitempty"`
	Created   time.Time `json:"created"`
}

// Monolith is an imported run.
type Monolith struct {
	Version  Version
	Graph    *graph.Graph
	Snapshot domain.Snapshot
	Assets   map[string][]byte
	Meta     Meta
}

type document struct {
	Pages    []domain.Page     `json:"pages"`
	Snapshot domain.Snapshot   `json:"snapshot"`
	Assets   map[string][]byte `json:"assets,omitempty"`
	Meta     Meta              `json:"meta"`
}

type options struct {
	assets        map[string][]byte
	meta          Meta
	allowMismatch bool
}

// Option configures Export or Import.
type Option func(*options)

// WithAsset embeds a named binary asset in the export.
func WithAsset(name string, data []byte) Option {
	return func(o *options) {
		if o.assets == nil {
			o.assets = make(map[string][]byte)
		}
		o.assets[name] = bytes.Clone(data)
	}
}

// WithName records a graph name in the export metadata.
func WithName(name string) Option {
	return func(o *options) {
		o.meta.Name = name
	}
}

// WithGenerator records the producing program in the export metadata.
func WithGenerator(generator string) Option {
	return func(o *options) {
		o.meta.Generator = generator
	}
}

// AllowVersionMismatch lets Import read blobs of another major version.
func AllowVersionMismatch() Option {
	return func(o *options) {
		o.allowMismatch = true
	}
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func serializationError(stage string, err error) error {
	return &domain.SerializationError{Stage: stage, Err: err}
}

// Export serializes g and snap.
func Export(g *graph.Graph, snap domain.Snapshot, opts ...Option) ([]byte, error) {
	o := newOptions(opts)
	if err := checkSnapshot(g, snap); err != nil {
		return nil, serializationError("export", err)
	}

	meta := o.meta
	meta.Created = time.Now().UTC()
	payload, err := json.Marshal(document{
		Pages:    g.Pages(),
		Snapshot: snap,
		Assets:   o.assets,
		Meta:     meta,
	})
	if err != nil {
		return nil, serializationError("encode", err)
	}
	return pack(FormatVersion, payload)
}

func pack(v Version, payload []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, serializationError("compress", err)
	}
	defer enc.Close()

	out := make([]byte, 0, headerLen+len(payload)/2)
	out = append(out, Magic...)
	out = append(out, v.Major, v.Minor, v.Patch)
	return enc.EncodeAll(payload, out), nil
}

// ReadHeader returns the format version of blob without decoding it.
func ReadHeader(blob []byte) (Version, error) {
	if len(blob) < len(Magic) {
		return Version{}, serializationError("header", ErrTruncated)
	}
	if string(blob[:len(Magic)]) != Magic {
		return Version{}, serializationError("header", ErrBadMagic)
	}
	if len(blob) < headerLen {
		return Version{}, serializationError("header", ErrTruncated)
	}
	return Version{Major: blob[4], Minor: blob[5], Patch: blob[6]}, nil
}

// Import decodes blob and rebuilds the graph. The snapshot must reference
// only pages of the embedded graph.
func Import(blob []byte, opts ...Option) (*Monolith, error) {
	o := newOptions(opts)

	v, err := ReadHeader(blob)
	if err != nil {
		return nil, err
	}
	if v.Major != FormatVersion.Major && !o.allowMismatch {
		return nil, serializationError("version",
			fmt.Errorf("%w: blob is %s, reader is %s", ErrVersionMismatch, v, FormatVersion))
	}

	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
	if err != nil {
		return nil, serializationError("decompress", err)
	}
	defer dec.Close()
	payload, err := dec.DecodeAll(blob[headerLen:], nil)
	if err != nil {
		return nil, serializationError("decompress", err)
	}

	var doc document
	jd := json.NewDecoder(bytes.NewReader(payload))
	jd.UseNumber()
	if err := jd.Decode(&doc); err != nil {
		return nil, serializationError("decode", err)
	}

	g, err := graph.New(doc.Pages...)
	if err != nil {
		return nil, serializationError("graph", err)
	}
	if err := checkSnapshot(g, doc.Snapshot); err != nil {
		return nil, serializationError("snapshot", err)
	}
	if doc.Snapshot.Values == nil {
		doc.Snapshot.Values = map[string]any{}
	}

	return &Monolith{
		Version:  v,
		Graph:    g,
		Snapshot: doc.Snapshot,
		Assets:   doc.Assets,
		Meta:     doc.Meta,
	}, nil
}

// checkSnapshot requires every page the snapshot names to exist in g. Current
// may be empty only for a session that finished because every page was skipped.
func checkSnapshot(g *graph.Graph, snap domain.Snapshot) error {
	skippedAll := snap.Current == "" && snap.Status == domain.StatusFinished
	if _, err := g.Page(snap.Current); err != nil && !skippedAll {
		return fmt.Errorf("%w: current page %q", ErrInconsistent, snap.Current)
	}
	if !g.ContainsAll(snap.History) {
		return fmt.Errorf("%w: history %v", ErrInconsistent, snap.History)
	}
	for id, rec := range snap.Tasks {
		if _, err := g.Page(rec.Page); err != nil {
			return fmt.Errorf("%w: task %s on page %q", ErrInconsistent, id, rec.Page)
		}
	}
	return nil
}
