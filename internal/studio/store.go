// Package studio holds the peer's application state (designs and the
// template catalogue) and the RPC handlers that operate on it.
package studio

import (
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/studioforge/studiorpc/internal/interfaces"
)

// Canvas size used when a request leaves width or height zero
const (
	DefaultWidth  = 1080
	DefaultHeight = 1080
)

// Store is an in-memory design store. Handlers run concurrently, so every
// access goes through mutex. The template catalogue is fixed at construction.
type Store struct {
	mutex   sync.RWMutex
	designs map[string]interfaces.Design
	order   []string

	templates []interfaces.Template
	now       func() time.Time
}

// NewStore creates an empty store serving templates
func NewStore(templates []interfaces.Template) *Store {
	return &Store{
		designs:   make(map[string]interfaces.Design),
		templates: templates,
		now:       time.Now,
	}
}

// Create assigns an id, timestamp and revision to d and stores it
func (s *Store) Create(d interfaces.Design) interfaces.Design {
	if d.Width == 0 {
		d.Width = DefaultWidth
	}
	if d.Height == 0 {
		d.Height = DefaultHeight
	}
	if d.Elements == nil {
		d.Elements = []interfaces.Element{}
	} else {
		d.Elements = append([]interfaces.Element(nil), d.Elements...)
	}
	d.ID = uuid.NewString()
	d.CreatedAt = s.now().UTC()
	d.Revision = Revision(d)

	s.mutex.Lock()
	s.designs[d.ID] = d
	s.order = append(s.order, d.ID)
	s.mutex.Unlock()

	return d
}

// Get returns the design stored under id
func (s *Store) Get(id string) (interfaces.Design, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	d, ok := s.designs[id]
	return d, ok
}

// List returns designs in creation order starting at offset. A non-positive
// limit returns everything after offset.
func (s *Store) List(offset, limit int) ([]interfaces.Design, int) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	total := len(s.order)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []interfaces.Design{}, total
	}
	end := total
	if limit > 0 && limit < total-offset {
		end = offset + limit
	}

	out := make([]interfaces.Design, 0, end-offset)
	for _, id := range s.order[offset:end] {
		out = append(out, s.designs[id])
	}
	return out, total
}

// Count returns the number of stored designs
func (s *Store) Count() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.order)
}

// Template returns the catalogue entry with id
func (s *Store) Template(id string) (interfaces.Template, bool) {
	for _, t := range s.templates {
		if t.ID == id {
			return t, true
		}
	}
	return interfaces.Template{}, false
}

// SearchTemplates matches q.Query case-insensitively against name, description
// and tags, restricted to q.Types when given. Results are ordered by id.
func (s *Store) SearchTemplates(q interfaces.TemplateQuery) []interfaces.Template {
	query := strings.ToLower(strings.TrimSpace(q.Query))
	types := make(map[string]bool, len(q.Types))
	for _, t := range q.Types {
		types[strings.ToLower(t)] = true
	}

	out := []interfaces.Template{}
	for _, t := range s.templates {
		if len(types) > 0 && !types[strings.ToLower(t.Type)] {
			continue
		}
		if query != "" && !matchesTemplate(t, query) {
			continue
		}
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func matchesTemplate(t interfaces.Template, query string) bool {
	if strings.Contains(strings.ToLower(t.Name), query) ||
		strings.Contains(strings.ToLower(t.Description), query) {
		return true
	}
	for _, tag := range t.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}
	return false
}

// Revision is a short BLAKE2b digest over the content of a design. Two designs
// with equal name, canvas and elements share a revision.
func Revision(d interfaces.Design) string {
	content, _ := json.Marshal(struct {
		Name     string               `json:"name"`
		Width    int                  `json:"width"`
		Height   int                  `json:"height"`
		Elements []interfaces.Element `json:"elements"`
	}{d.Name, d.Width, d.Height, d.Elements})

	sum := blake2b.Sum256(content)
	return hex.EncodeToString(sum[:8])
}
