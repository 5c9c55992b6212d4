package artifact

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hupe1980/engram/blobstore"
	"github.com/hupe1980/engram/codec"
	"github.com/hupe1980/engram/resource"
)

// Manager loads and stores bundles in a blobstore, keyed by
// configuration fingerprint.
type Manager struct {
	store       blobstore.Store
	codec       codec.Codec
	compression Compression
	rc          *resource.Controller
	logger      *slog.Logger
}

// NewManager creates a Manager. codec may be nil (codec.Default) and
// rc may be nil (no IO budget). logger may be nil to disable logging.
func NewManager(store blobstore.Store, c codec.Codec, comp Compression, rc *resource.Controller, logger *slog.Logger) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("artifact: blobstore is required")
	}
	if c == nil {
		c = codec.Default
	}

	return &Manager{store: store, codec: c, compression: comp, rc: rc, logger: logger}, nil
}

func blobName(fingerprint string) string {
	return fingerprint + ".engram"
}

// Load fetches and decodes the bundle for fingerprint.
// Returns blobstore.ErrNotFound on a cache miss and
// ErrFingerprintMismatch if the stored bundle belongs to a different
// configuration.
func (m *Manager) Load(ctx context.Context, fingerprint string) (*Bundle, error) {
	blob, err := m.store.Open(ctx, blobName(fingerprint))
	if err != nil {
		return nil, err
	}
	defer blob.Close()

	if err := m.rc.WaitIO(ctx, int(blob.Size())); err != nil {
		return nil, err
	}

	data, err := blob.Bytes()
	if err != nil {
		return nil, err
	}

	b, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if b.Fingerprint != fingerprint {
		return nil, &ErrFingerprintMismatch{Want: fingerprint, Got: b.Fingerprint}
	}

	if m.logger != nil {
		m.logger.Debug("artifact bundle loaded",
			"fingerprint", fingerprint, "bytes", blob.Size(), "layers", len(b.Layers))
	}

	return b, nil
}

// Store encodes and writes the bundle under its fingerprint.
func (m *Manager) Store(ctx context.Context, b *Bundle) error {
	if b.Fingerprint == "" {
		return fmt.Errorf("artifact: bundle has no fingerprint")
	}

	data, err := Encode(b, m.codec, m.compression)
	if err != nil {
		return err
	}

	if err := m.rc.WaitIO(ctx, len(data)); err != nil {
		return err
	}

	if err := m.store.Put(ctx, blobName(b.Fingerprint), data); err != nil {
		return err
	}

	if m.logger != nil {
		m.logger.Debug("artifact bundle stored",
			"fingerprint", b.Fingerprint, "bytes", len(data), "layers", len(b.Layers))
	}

	return nil
}
