package download

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/helixir/paper-acquisition-service/internal/domain"
)

// ClientInfo describes a configured download client.
type ClientInfo struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Protocol domain.Protocol `json:"protocol"`
	Priority int             `json:"priority"`
	Enabled  bool            `json:"enabled"`

	// Tags restrict the client to authors sharing a tag. Empty means any.
	Tags []string `json:"tags,omitempty"`
}

// Client hands a release to a transfer backend. Download returns the
// backend's job id, or an empty string when the backend assigns none.
//
// Implementations report releases that can never be submitted with a
// *domain.TerminalSubmissionError.
type Client interface {
	Info() ClientInfo
	Download(ctx context.Context, release domain.Release) (string, error)
}

// ClientProvider resolves the client a release is submitted to.
type ClientProvider interface {
	Get(id int64) (Client, error)
	ForRelease(release domain.Release, tags []string) (Client, error)
}

// Registry is an in-memory ClientProvider.
type Registry struct {
	mu      sync.RWMutex
	clients map[int64]Client
}

// NewRegistry creates a registry holding clients.
func NewRegistry(clients ...Client) *Registry {
	r := &Registry{clients: make(map[int64]Client, len(clients))}
	for _, c := range clients {
		r.Register(c)
	}
	return r
}

// Register adds or replaces a client.
func (r *Registry) Register(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.Info().ID] = c
}

// Get returns the client with the given id.
func (r *Registry) Get(id int64) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	if !ok {
		return nil, domain.NewNotFoundError("download client", strconv.FormatInt(id, 10))
	}
	return c, nil
}

// ForRelease picks the enabled client for the release's protocol that
// shares a tag with the author, preferring the lowest priority number.
func (r *Registry) ForRelease(release domain.Release, tags []string) (Client, error) {
	protocol := release.Protocol
	if protocol == "" {
		protocol = domain.ProtocolHTTP
	}

	r.mu.RLock()
	candidates := make([]Client, 0, len(r.clients))
	for _, c := range r.clients {
		info := c.Info()
		if info.Enabled && info.Protocol == protocol && tagsOverlap(info.Tags, tags) {
			candidates = append(candidates, c)
		}
	}
	r.mu.RUnlock()

	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no %s download client configured", domain.ErrServiceUnavailable, protocol)
	}
	slices.SortFunc(candidates, func(a, b Client) int {
		ia, ib := a.Info(), b.Info()
		if c := cmp.Compare(ia.Priority, ib.Priority); c != 0 {
			return c
		}
		return cmp.Compare(ia.ID, ib.ID)
	})
	return candidates[0], nil
}

// List returns every registered client ordered by id.
func (r *Registry) List() []ClientInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ClientInfo, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c.Info())
	}
	slices.SortFunc(out, func(a, b ClientInfo) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func tagsOverlap(clientTags, authorTags []string) bool {
	if len(clientTags) == 0 {
		return true
	}
	for _, t := range clientTags {
		if slices.Contains(authorTags, t) {
			return true
		}
	}
	return false
}
