package balancer

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/cocaineapp/balancer/internal/errs"
	"github.com/cocaineapp/balancer/internal/namespace"
	"github.com/cocaineapp/balancer/internal/storage"
)

// namespaceKeyPrefix namespaces every settings blob in the shared
// storage.Store so it can sit alongside MASTERMIND_MAX_GROUP_KEY without
// colliding.
const namespaceKeyPrefix = "namespace:"

// deletedField marks a namespace as soft-deleted: namespace_delete doesn't
// remove the blob, it tombstones it. A tombstoned namespace reads as absent,
// and a later namespace_setup replaces the blob with the new settings alone.
const deletedField = "__service.is_deleted"

// NamespaceStore persists namespace.Settings blobs through a storage.Store,
// serializing with encoding/json the same way lifecycle.Meta does for
// couple metadata.
type NamespaceStore struct {
	mu    sync.Mutex
	store storage.Store
}

// NewNamespaceStore builds a NamespaceStore over store.
func NewNamespaceStore(store storage.Store) *NamespaceStore {
	return &NamespaceStore{store: store}
}

func namespaceKey(name string) string { return namespaceKeyPrefix + name }

// Get returns name's settings and whether the namespace exists and is not
// soft-deleted.
func (s *NamespaceStore) Get(name string) (namespace.Settings, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(name)
}

func (s *NamespaceStore) get(name string) (namespace.Settings, bool, error) {
	raw, err := s.store.Get(namespaceKey(name))
	if err == storage.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.Wrap(errs.Internal, "balancer: read namespace %s: %v", name, err)
	}
	var settings namespace.Settings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return nil, false, errs.Wrap(errs.Internal, "balancer: decode namespace %s: %v", name, err)
	}
	if deleted, _ := settings[deletedField].(bool); deleted {
		return settings, false, nil
	}
	return settings, true, nil
}

// Put writes settings for name, overwriting any soft-delete tombstone.
func (s *NamespaceStore) Put(name string, settings namespace.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clean := namespace.StripUnknown(settings)
	delete(clean, deletedField)
	raw, err := json.Marshal(clean)
	if err != nil {
		return errs.Wrap(errs.Internal, "balancer: encode namespace %s: %v", name, err)
	}
	if err := s.store.Put(namespaceKey(name), raw); err != nil {
		return errs.Wrap(errs.Internal, "balancer: write namespace %s: %v", name, err)
	}
	return nil
}

// Delete soft-deletes name: the settings blob is kept but flagged. Get and
// List then treat the namespace as absent, and a later namespace_setup
// starts from its new settings as for a fresh namespace.
func (s *NamespaceStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, exists, err := s.get(name)
	if err != nil {
		return err
	}
	if !exists {
		return errs.Wrap(errs.NotFound, "balancer: namespace %q not found", name)
	}
	if settings == nil {
		settings = namespace.Settings{}
	}
	settings[deletedField] = true
	raw, err := json.Marshal(settings)
	if err != nil {
		return errs.Wrap(errs.Internal, "balancer: encode namespace %s: %v", name, err)
	}
	return s.store.Put(namespaceKey(name), raw)
}

// List returns the names of every namespace that is not soft-deleted, sorted.
func (s *NamespaceStore) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var names []string
	for _, key := range s.store.List() {
		if len(key) <= len(namespaceKeyPrefix) || key[:len(namespaceKeyPrefix)] != namespaceKeyPrefix {
			continue
		}
		name := key[len(namespaceKeyPrefix):]
		_, exists, err := s.get(name)
		if err != nil {
			return nil, err
		}
		if exists {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}
