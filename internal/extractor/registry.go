package extractor

import (
	"sort"
	"sync"

	"github.com/dmitrijs2005/biokeeper/internal/biometric"
)

// Status is the availability of one backend as recorded at startup.
type Status struct {
	Name      string
	Modality  biometric.Modality
	Position  int
	Available bool
	Reason    string
}

// Registry records which backends passed their startup probe. Backends that
// were never probed count as available.
type Registry struct {
	mu     sync.RWMutex
	status map[string]Status
}

func newRegistry() *Registry {
	return &Registry{status: make(map[string]Status)}
}

func (r *Registry) set(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status[key(s.Modality, s.Name)] = s
}

// Available reports whether the named backend of modality m may be used.
func (r *Registry) Available(m biometric.Modality, name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.status[key(m, name)]
	return !ok || s.Available
}

// Snapshot returns all recorded statuses ordered by modality and chain position.
func (r *Registry) Snapshot() []Status {
	r.mu.RLock()
	out := make([]Status, 0, len(r.status))
	for _, s := range r.status {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Modality != out[j].Modality {
			return out[i].Modality < out[j].Modality
		}
		return out[i].Position < out[j].Position
	})
	return out
}

func key(m biometric.Modality, name string) string {
	return string(m) + "/" + name
}
