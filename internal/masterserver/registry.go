package masterserver

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrHostNotFound is returned for unknown host ids
var ErrHostNotFound = errors.New("host not found")

// Host is a game server advertised through the master server
type Host struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Address      string    `json:"address"`
	Port         uint16    `json:"port"`
	GameID       string    `json:"game_id"`
	GameType     string    `json:"game_type"`
	Mode         string    `json:"mode"`
	Protocol     string    `json:"protocol"`
	Elo          int       `json:"elo"`
	Players      int       `json:"players"`
	MaxPlayers   int       `json:"max_players"`
	RegisteredAt time.Time `json:"registered_at"`
	LastSeen     time.Time `json:"last_seen"`
}

// Filter narrows a host listing. Elo is only honoured when the registry has a
// non-zero elo range.
type Filter struct {
	GameID   string
	GameType string
	Mode     string
	Elo      *int
}

// Event describes a registry change
type Event struct {
	Type string
	Host Host
}

const (
	EventHostRegistered = "host_registered"
	EventHostUpdated    = "host_updated"
	EventHostRemoved    = "host_removed"
	EventHostPruned     = "host_pruned"
)

// Registry stores advertised hosts in memory
type Registry struct {
	mu       sync.RWMutex
	hosts    map[string]*Host
	now      func() time.Time
	onChange func(Event)
}

// NewRegistry creates an empty registry. onChange may be nil.
func NewRegistry(onChange func(Event)) *Registry {
	return &Registry{
		hosts:    make(map[string]*Host),
		now:      time.Now,
		onChange: onChange,
	}
}

// Register adds a host and assigns it an id
func (r *Registry) Register(host Host) Host {
	now := r.now()
	host.ID = uuid.NewString()
	host.RegisteredAt = now
	host.LastSeen = now

	r.mu.Lock()
	stored := host
	r.hosts[host.ID] = &stored
	r.mu.Unlock()

	r.emit(EventHostRegistered, host)
	return host
}

// Heartbeat refreshes a host and optionally updates its player count
func (r *Registry) Heartbeat(id string, players *int) (Host, error) {
	r.mu.Lock()
	host, ok := r.hosts[id]
	if !ok {
		r.mu.Unlock()
		return Host{}, ErrHostNotFound
	}
	host.LastSeen = r.now()
	if players != nil {
		host.Players = *players
	}
	updated := *host
	r.mu.Unlock()

	r.emit(EventHostUpdated, updated)
	return updated, nil
}

// Remove deletes a host
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	host, ok := r.hosts[id]
	if !ok {
		r.mu.Unlock()
		return ErrHostNotFound
	}
	delete(r.hosts, id)
	removed := *host
	r.mu.Unlock()

	r.emit(EventHostRemoved, removed)
	return nil
}

// Get returns one host
func (r *Registry) Get(id string) (Host, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	host, ok := r.hosts[id]
	if !ok {
		return Host{}, ErrHostNotFound
	}
	return *host, nil
}

// List returns hosts matching filter, closest elo first when elo filtering
// applies and oldest registration first otherwise.
func (r *Registry) List(filter Filter, eloRange int) []Host {
	r.mu.RLock()
	hosts := make([]Host, 0, len(r.hosts))
	for _, host := range r.hosts {
		if !matches(host, filter, eloRange) {
			continue
		}
		hosts = append(hosts, *host)
	}
	r.mu.RUnlock()

	useElo := eloRange > 0 && filter.Elo != nil
	sort.Slice(hosts, func(i, j int) bool {
		if useElo {
			di, dj := abs(hosts[i].Elo-*filter.Elo), abs(hosts[j].Elo-*filter.Elo)
			if di != dj {
				return di < dj
			}
		}
		if !hosts[i].RegisteredAt.Equal(hosts[j].RegisteredAt) {
			return hosts[i].RegisteredAt.Before(hosts[j].RegisteredAt)
		}
		return hosts[i].ID < hosts[j].ID
	})
	return hosts
}

// Prune removes hosts not seen since cutoff and returns them
func (r *Registry) Prune(cutoff time.Time) []Host {
	r.mu.Lock()
	var pruned []Host
	for id, host := range r.hosts {
		if host.LastSeen.Before(cutoff) {
			pruned = append(pruned, *host)
			delete(r.hosts, id)
		}
	}
	r.mu.Unlock()

	for _, host := range pruned {
		r.emit(EventHostPruned, host)
	}
	return pruned
}

// Len returns the number of registered hosts
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hosts)
}

func (r *Registry) emit(eventType string, host Host) {
	if r.onChange != nil {
		r.onChange(Event{Type: eventType, Host: host})
	}
}

func matches(host *Host, filter Filter, eloRange int) bool {
	if filter.GameID != "" && host.GameID != filter.GameID {
		return false
	}
	if filter.GameType != "" && !strings.EqualFold(host.GameType, filter.GameType) {
		return false
	}
	if filter.Mode != "" && !strings.EqualFold(host.Mode, filter.Mode) {
		return false
	}
	if eloRange > 0 && filter.Elo != nil && abs(host.Elo-*filter.Elo) > eloRange {
		return false
	}
	return true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
