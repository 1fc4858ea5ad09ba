package save

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/simforge/simforge/internal/core/config"
	"github.com/simforge/simforge/internal/core/ecs"
	"github.com/simforge/simforge/internal/core/observability/log"
	"github.com/simforge/simforge/internal/core/schema/registry"
	"github.com/simforge/simforge/pkg/concurrent"
	"github.com/simforge/simforge/pkg/generic"
	"github.com/simforge/simforge/pkg/sequence"
)

// ErrNoValidSave is returned when neither the primary payload nor any backup
// for a key could be loaded.
var ErrNoValidSave = errors.New("save: no valid save data")

const backupInfix = "_backup_"

// SaveSystem snapshots and restores Worlds against pluggable storage
// backends. It holds no world state of its own; operations on one key are
// assumed to run on a single logical thread.
//
// Load is best-effort by policy: a component that fails validation is dropped
// from its entity, everything else still restores. A single corrupted
// component must never invalidate an otherwise-good save.
type SaveSystem struct {
	registry *registry.Registry
	rules    *config.DefaultRules
	local    Backend
	cloud    Backend
	logger   log.Log
	version  string

	mu         sync.Mutex
	lastBackup int64
}

type Option func(*SaveSystem)

// WithRules installs the archetype defaulting rules applied during load.
func WithRules(rules *config.DefaultRules) Option {
	return func(s *SaveSystem) { s.rules = rules }
}

// WithCloud attaches a cloud backend for the SaveCloud/LoadCloud path.
func WithCloud(backend Backend) Option {
	return func(s *SaveSystem) { s.cloud = backend }
}

func WithLogger(l log.Log) Option {
	return func(s *SaveSystem) { s.logger = l }
}

// WithVersion overrides the format version written into snapshots.
func WithVersion(v string) Option {
	return func(s *SaveSystem) { s.version = v }
}

func New(reg *registry.Registry, local Backend, opts ...Option) *SaveSystem {
	s := &SaveSystem{
		registry: reg,
		local:    local,
		logger:   log.Nop{},
		version:  FormatVersion,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveOptions controls how a snapshot is stored.
type SaveOptions struct {
	// Compress gzips the payload before storage.
	Compress bool
	// Checksum records a corruption-detection checksum inside the snapshot.
	Checksum bool
}

// LoadOptions controls how a stored payload is validated.
type LoadOptions struct {
	// VerifyChecksum treats a checksum mismatch as corruption.
	VerifyChecksum bool
}

// Serialize walks all live entities and produces a snapshot. Entities with
// zero components still appear so their existence survives the round trip.
// A component whose payload cannot be marshaled (a NaN smuggled into a
// float, say) is skipped with a warning instead of poisoning the snapshot.
func (s *SaveSystem) Serialize(w *ecs.World) (*Snapshot, error) {
	if w == nil {
		return nil, fmt.Errorf("save: serialize nil world")
	}
	em := w.EntityManager()
	cm := w.ComponentManager()

	entities := em.AllEntities()
	snap := &Snapshot{
		Entities:     make([]EntityRecord, 0, len(entities)),
		NextEntityID: uint64(em.NextEntityID()),
		Version:      s.version,
		Timestamp:    time.Now().UnixMilli(),
	}

	for _, e := range entities {
		rec := EntityRecord{
			ID:         uint64(e.ID),
			Components: make([]ComponentRecord, 0),
		}
		for _, typeName := range cm.ComponentTypes(e.ID) {
			data, _ := cm.GetComponent(e.ID, typeName)
			raw, err := json.Marshal(data)
			if err != nil {
				s.logger.Warn("skipping unserializable component",
					log.Uint64("entity", uint64(e.ID)),
					log.String("type", typeName),
					log.Error(err),
				)
				continue
			}
			rec.Components = append(rec.Components, ComponentRecord{Type: typeName, Data: raw})
		}
		snap.Entities = append(snap.Entities, rec)
	}
	return snap, nil
}

// Deserialize constructs a new World from a snapshot. Components failing
// validation are dropped silently from their entity; archetype rules then
// synthesize defaults for component kinds an older snapshot never wrote.
func (s *SaveSystem) Deserialize(snap *Snapshot) (*ecs.World, error) {
	if snap == nil {
		return nil, fmt.Errorf("save: deserialize nil snapshot")
	}
	w := ecs.NewWorld(ecs.WithLogger(s.logger))

	// Defaulting only covers component kinds the snapshot never wrote for an
	// entity. A component that was present but failed validation is dropped,
	// not replaced with a default, so record everything that was written,
	// valid or not.
	written := make(map[ecs.EntityID]map[string]struct{}, len(snap.Entities))

	for _, rec := range snap.Entities {
		e := w.CreateEntityWithID(ecs.EntityID(rec.ID))
		seen := make(map[string]struct{}, len(rec.Components))
		written[e.ID] = seen
		for _, comp := range rec.Components {
			seen[comp.Type] = struct{}{}
			value, err := s.decodeComponent(comp)
			if err != nil {
				s.logger.Warn("dropping invalid component",
					log.Uint64("entity", rec.ID),
					log.String("type", comp.Type),
					log.Error(err),
				)
				continue
			}
			w.AddComponent(e.ID, comp.Type, value)
		}
	}

	s.applyDefaults(w, written)

	// Restore the id counter so new entities never collide with restored
	// ones. SetNextEntityID floors at max(existing id)+1, which also covers
	// snapshots with a missing or stale counter.
	w.EntityManager().SetNextEntityID(ecs.EntityID(snap.NextEntityID))
	return w, nil
}

// decodeComponent validates one raw payload against its registered schema and
// optionally decodes it into a typed value. Unregistered kinds pass through
// as generic maps.
func (s *SaveSystem) decodeComponent(comp ComponentRecord) (any, error) {
	var fields map[string]any
	if err := json.Unmarshal(comp.Data, &fields); err != nil {
		return nil, fmt.Errorf("payload is not an object: %w", err)
	}

	t, ok := s.registry.Type(comp.Type)
	if !ok {
		return fields, nil
	}
	schema := t.Schema()
	if err := schema.Validate(fields); err != nil {
		return nil, err
	}
	if schema != nil && schema.Decode != nil {
		value, err := schema.Decode(comp.Data)
		if err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		return value, nil
	}
	return fields, nil
}

// applyDefaults runs the archetype rules: entities holding a rule's marker
// component get each listed default synthesized when the snapshot never
// wrote one. Entities outside the archetype are never touched.
func (s *SaveSystem) applyDefaults(w *ecs.World, written map[ecs.EntityID]map[string]struct{}) {
	if s.rules == nil {
		return
	}
	for _, rule := range s.rules.Rules {
		for _, id := range w.EntitiesWith(rule.Marker) {
			for _, typeName := range rule.Defaults {
				if w.HasComponent(id, typeName) {
					continue
				}
				if _, wasWritten := written[id][typeName]; wasWritten {
					continue
				}
				t, ok := s.registry.Type(typeName)
				if !ok {
					continue
				}
				value := t.Schema().DefaultValue()
				if value == nil {
					continue
				}
				w.AddComponent(id, typeName, value)
				s.logger.Debug("synthesized default component",
					log.Uint64("entity", uint64(id)),
					log.String("type", typeName),
					log.String("marker", rule.Marker),
				)
			}
		}
	}
}

// SaveLocal stores a snapshot of the world under key in the local store.
func (s *SaveSystem) SaveLocal(ctx context.Context, w *ecs.World, key string, opts SaveOptions) error {
	return s.saveTo(ctx, s.local, w, key, opts)
}

// LoadLocal restores a world from the local store, falling back to the
// newest backup when the primary payload is corrupted.
func (s *SaveSystem) LoadLocal(ctx context.Context, key string, opts LoadOptions) (*ecs.World, error) {
	return s.loadFrom(ctx, s.local, key, opts)
}

// SaveCloud stores a snapshot against the configured cloud backend. Backend
// failures surface as errors, never as panics.
func (s *SaveSystem) SaveCloud(ctx context.Context, w *ecs.World, key string, opts SaveOptions) error {
	if s.cloud == nil {
		return fmt.Errorf("save: no cloud backend configured")
	}
	return s.saveTo(ctx, s.cloud, w, key, opts)
}

// LoadCloud restores a world from the configured cloud backend.
func (s *SaveSystem) LoadCloud(ctx context.Context, key string, opts LoadOptions) (*ecs.World, error) {
	if s.cloud == nil {
		return nil, fmt.Errorf("save: no cloud backend configured")
	}
	return s.loadFrom(ctx, s.cloud, key, opts)
}

func (s *SaveSystem) saveTo(ctx context.Context, backend Backend, w *ecs.World, key string, opts SaveOptions) error {
	if err := validateKey(key); err != nil {
		return err
	}
	snap, err := s.Serialize(w)
	if err != nil {
		return err
	}
	if opts.Checksum {
		if err = snap.Seal(); err != nil {
			return err
		}
	}
	payload, err := snap.Encode()
	if err != nil {
		return err
	}
	if opts.Compress {
		if payload, err = compress(payload); err != nil {
			return err
		}
	}

	// The pre-overwrite backup is the sole recovery mechanism: copy the
	// existing payload aside before it is replaced.
	if existing, loadErr := backend.Load(ctx, key); loadErr == nil {
		backupKey := s.nextBackupKey(key)
		if err = backend.Save(ctx, backupKey, existing, Metadata{"origin": key}); err != nil {
			return fmt.Errorf("save: write backup %s: %w", backupKey, err)
		}
	}

	meta := Metadata{
		"save_id":   uuid.NewString(),
		"version":   snap.Version,
		"timestamp": strconv.FormatInt(snap.Timestamp, 10),
	}
	if snap.Checksum != "" {
		meta["checksum"] = snap.Checksum
	}
	if err = backend.Save(ctx, key, payload, meta); err != nil {
		return fmt.Errorf("save: store %s: %w", key, err)
	}
	s.logger.Info("world saved",
		log.String("key", key),
		log.Int("entities", len(snap.Entities)),
		log.Bool("compressed", opts.Compress),
		log.Bool("checksummed", opts.Checksum),
	)
	return nil
}

func (s *SaveSystem) loadFrom(ctx context.Context, backend Backend, key string, opts LoadOptions) (*ecs.World, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	w, primaryErr := s.tryLoad(ctx, backend, key, opts)
	if primaryErr == nil {
		return w, nil
	}
	s.logger.Warn("primary save failed, trying backups",
		log.String("key", key),
		log.Error(primaryErr),
	)

	for _, backupKey := range s.backupKeys(ctx, backend, key) {
		w, err := s.tryLoad(ctx, backend, backupKey, opts)
		if err != nil {
			s.logger.Warn("backup failed",
				log.String("key", backupKey),
				log.Error(err),
			)
			continue
		}
		s.logger.Info("recovered from backup",
			log.String("key", key),
			log.String("backup", backupKey),
		)
		return w, nil
	}
	return nil, fmt.Errorf("%w: %s: %s", ErrNoValidSave, key, primaryErr)
}

func (s *SaveSystem) tryLoad(ctx context.Context, backend Backend, key string, opts LoadOptions) (*ecs.World, error) {
	payload, err := backend.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	payload, err = maybeDecompress(payload)
	if err != nil {
		return nil, err
	}
	snap, err := DecodeSnapshot(payload)
	if err != nil {
		return nil, err
	}
	if opts.VerifyChecksum && !snap.VerifyChecksum() {
		return nil, fmt.Errorf("save: checksum mismatch for %s", key)
	}
	return s.Deserialize(snap)
}

// ValidateSaveData reports whether the stored payload at key parses and its
// recorded checksum still matches. It never mutates stored state.
func (s *SaveSystem) ValidateSaveData(ctx context.Context, key string) bool {
	payload, err := s.local.Load(ctx, key)
	if err != nil {
		return false
	}
	payload, err = maybeDecompress(payload)
	if err != nil {
		return false
	}
	snap, err := DecodeSnapshot(payload)
	if err != nil {
		return false
	}
	return snap.VerifyChecksum()
}

// AvailableSaves lists primary save keys in the local store, excluding backup
// slots.
func (s *SaveSystem) AvailableSaves(ctx context.Context) ([]string, error) {
	keys, err := s.local.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("save: list saves: %w", err)
	}
	return sequence.From(keys).
		Filter(func(k string) bool { return !isBackupKey(k) }).
		Collect(), nil
}

// DeleteSave removes the primary payload at key and all its backup slots.
// Returns false when no primary payload existed.
func (s *SaveSystem) DeleteSave(ctx context.Context, key string) bool {
	if err := validateKey(key); err != nil {
		return false
	}
	err := s.local.Delete(ctx, key)
	existed := err == nil
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.Warn("delete save failed", log.String("key", key), log.Error(err))
		return false
	}
	backups := s.backupKeys(ctx, s.local, key)
	delErr := concurrent.ForEach(sequence.From(backups), func(backupKey string) error {
		return s.local.Delete(ctx, backupKey)
	})
	if delErr != nil {
		s.logger.Warn("delete backup failed", log.String("key", key), log.Error(delErr))
	}
	return existed
}

// nextBackupKey builds "<key>_backup_<epoch-ms>", bumping the clock reading
// when two backups land in the same millisecond so slots never overwrite
// each other.
func (s *SaveSystem) nextBackupKey(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := time.Now().UnixMilli()
	if ts <= s.lastBackup {
		ts = s.lastBackup + 1
	}
	s.lastBackup = ts
	return fmt.Sprintf("%s%s%d", key, backupInfix, ts)
}

// backupKeys returns the backup slots for key, newest first.
func (s *SaveSystem) backupKeys(ctx context.Context, backend Backend, key string) []string {
	keys, err := backend.List(ctx)
	if err != nil {
		s.logger.Warn("list backups failed", log.String("key", key), log.Error(err))
		return nil
	}
	prefix := key + backupInfix
	return sequence.From(keys).
		Filter(func(k string) bool {
			return strings.HasPrefix(k, prefix) && isBackupKey(k)
		}).
		Sort(func(a, b string) bool { return backupTimestamp(a) > backupTimestamp(b) }).
		Collect()
}

func isBackupKey(key string) bool {
	i := strings.LastIndex(key, backupInfix)
	if i < 0 {
		return false
	}
	_, err := strconv.ParseInt(key[i+len(backupInfix):], 10, 64)
	return err == nil
}

func backupTimestamp(key string) int64 {
	i := strings.LastIndex(key, backupInfix)
	if i < 0 {
		return 0
	}
	ts, _ := strconv.ParseInt(key[i+len(backupInfix):], 10, 64)
	return ts
}

var gzipWriters = generic.NewPool(func() *gzip.Writer {
	return gzip.NewWriter(io.Discard)
})

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzipWriters.Get()
	defer gzipWriters.Put(zw)
	zw.Reset(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("save: compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("save: compress: %w", err)
	}
	return buf.Bytes(), nil
}

// maybeDecompress reverses compression when the payload carries the gzip
// magic, and passes plain payloads through untouched.
func maybeDecompress(data []byte) ([]byte, error) {
	if len(data) < 2 || data[0] != 0x1f || data[1] != 0x8b {
		return data, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("save: decompress: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("save: decompress: %w", err)
	}
	return out, nil
}
