package simhost

import (
	"context"
	"log/slog"
)

// PersistentStore keeps extension state across host restarts.
// *store.Store satisfies it.
type PersistentStore interface {
	ReadExtState(ctx context.Context, section, key string) (string, bool, error)
	WriteExtState(ctx context.Context, section, key, value string) error
	DeleteExtState(ctx context.Context, section, key string) error
}

type extKey struct {
	section, key string
}

type extEntry struct {
	value   string
	deleted bool
}

// extState is the in-memory view of extension state. Values written with
// persist=false live only in memory; persisted values are written through
// to the store and read back lazily after a restart.
type extState struct {
	mem     map[extKey]extEntry
	persist PersistentStore
	logger  *slog.Logger
}

func newExtState(persist PersistentStore, logger *slog.Logger) *extState {
	return &extState{
		mem:     make(map[extKey]extEntry),
		persist: persist,
		logger:  logger,
	}
}

func (e *extState) Get(section, key string) (string, bool) {
	k := extKey{section, key}
	if ent, ok := e.mem[k]; ok {
		return ent.value, !ent.deleted
	}
	if e.persist == nil {
		return "", false
	}
	v, ok, err := e.persist.ReadExtState(context.Background(), section, key)
	if err != nil {
		e.logger.Warn("read persisted ext state", "section", section, "key", key, "error", err)
		return "", false
	}
	if ok {
		e.mem[k] = extEntry{value: v}
	}
	return v, ok
}

func (e *extState) Set(section, key, value string, persist bool) error {
	if persist && e.persist != nil {
		if err := e.persist.WriteExtState(context.Background(), section, key, value); err != nil {
			return err
		}
	}
	e.mem[extKey{section, key}] = extEntry{value: value}
	return nil
}

func (e *extState) Delete(section, key string, persist bool) error {
	if persist && e.persist != nil {
		if err := e.persist.DeleteExtState(context.Background(), section, key); err != nil {
			return err
		}
	}
	e.mem[extKey{section, key}] = extEntry{deleted: true}
	return nil
}
