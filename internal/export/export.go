package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/paneladmin/apiserver/internal/storage"
	"github.com/paneladmin/apiserver/types"
)

const (
	keyPrefix = "exports/panel_users-"
	keyLayout = "20060102T150405Z"
	keySuffix = ".json"

	recordCountMetadata = "record-count"
)

// ErrUnknownExport is returned for keys that do not name an export.
var ErrUnknownExport = errors.New("not an export key")

// UserLister is the read side of the user store used by exports.
type UserLister interface {
	List(ctx context.Context) ([]types.User, error)
}

// Exporter writes JSON snapshots of all panel users to object storage.
type Exporter struct {
	store storage.ObjectStorage
	users UserLister
	now   func() time.Time
}

func NewExporter(store storage.ObjectStorage, users UserLister) *Exporter {
	return &Exporter{store: store, users: users, now: time.Now}
}

// Export uploads a snapshot and returns its object key.
func (e *Exporter) Export(ctx context.Context) (string, error) {
	users, err := e.users.List(ctx)
	if err != nil {
		return "", fmt.Errorf("list users: %w", err)
	}

	payload, err := json.Marshal(types.Views(users))
	if err != nil {
		return "", fmt.Errorf("encode users: %w", err)
	}

	if err := e.store.EnsureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket %s: %w", e.store.Bucket(), err)
	}

	key := ObjectKey(e.now())
	err = e.store.Put(ctx, storage.Object{
		Key:         key,
		Body:        bytes.NewReader(payload),
		Size:        int64(len(payload)),
		ContentType: "application/json",
		Metadata:    map[string]string{recordCountMetadata: strconv.Itoa(len(users))},
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return key, nil
}

// List returns the stored exports, newest first.
func (e *Exporter) List(ctx context.Context) ([]storage.ObjectInfo, error) {
	objects, err := e.store.List(ctx, keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}

	exports := make([]storage.ObjectInfo, 0, len(objects))
	for i := len(objects) - 1; i >= 0; i-- {
		if _, ok := TakenAt(objects[i].Key); ok {
			exports = append(exports, objects[i])
		}
	}
	return exports, nil
}

// Read downloads and decodes the export stored under key.
func (e *Exporter) Read(ctx context.Context, key string) ([]types.UserView, error) {
	if _, ok := TakenAt(key); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExport, key)
	}

	body, err := e.store.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	var users []types.UserView
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return users, nil
}

// Prune removes all but the newest keep exports and returns the removed keys.
func (e *Exporter) Prune(ctx context.Context, keep int) ([]string, error) {
	if keep < 0 {
		return nil, fmt.Errorf("keep must not be negative, got %d", keep)
	}

	exports, err := e.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(exports) <= keep {
		return nil, nil
	}

	var removed []string
	for _, obj := range exports[keep:] {
		if err := e.store.Remove(ctx, obj.Key); err != nil {
			return removed, fmt.Errorf("remove %s: %w", obj.Key, err)
		}
		removed = append(removed, obj.Key)
	}
	return removed, nil
}

// ObjectKey names the export taken at t.
func ObjectKey(t time.Time) string {
	return keyPrefix + t.UTC().Format(keyLayout) + keySuffix
}

// TakenAt parses the timestamp encoded in an export key.
func TakenAt(key string) (time.Time, bool) {
	stamp, ok := strings.CutPrefix(key, keyPrefix)
	if !ok {
		return time.Time{}, false
	}
	stamp, ok = strings.CutSuffix(stamp, keySuffix)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(keyLayout, stamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
