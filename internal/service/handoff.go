package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"yobot/internal/catalog"
	"yobot/internal/model"

	"go.uber.org/zap"
)

var (
	// ErrInvalidPropertyID is returned when a property id is not a plain number
	ErrInvalidPropertyID = errors.New("property id must contain only digits")
	// ErrPropertyIDOutOfRange is returned for digit strings too large to be any listing id
	ErrPropertyIDOutOfRange = errors.New("property id out of range")
)

// ParsePropertyID accepts surrounding whitespace and nothing but digits
func ParsePropertyID(text string) (int64, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, ErrInvalidPropertyID
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidPropertyID, s)
		}
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrPropertyIDOutOfRange, s)
	}
	return id, nil
}

// AgentDirectory maps property ids to the phone of the responsible agent.
// The file is a JSON object such as {"1": "+593991234567"}. It is read at
// startup and on reload, and lookups use the last good copy.
type AgentDirectory struct {
	path   string
	agents atomic.Pointer[map[int64]string]
	logger *zap.Logger
}

// LoadAgentDirectory reads the directory file
func LoadAgentDirectory(path string, logger *zap.Logger) (*AgentDirectory, error) {
	d := &AgentDirectory{path: path, logger: logger.Named("agents")}
	if err := d.Reload(context.Background()); err != nil {
		return nil, err
	}
	return d, nil
}

// NewAgentDirectory builds a directory from an in-memory map
func NewAgentDirectory(agents map[int64]string, logger *zap.Logger) *AgentDirectory {
	d := &AgentDirectory{logger: logger.Named("agents")}
	cp := make(map[int64]string, len(agents))
	for k, v := range agents {
		cp[k] = v
	}
	d.agents.Store(&cp)
	return d
}

// Reload re-reads the file and swaps in the new mapping
func (d *AgentDirectory) Reload(ctx context.Context) error {
	if d.path == "" {
		return nil
	}
	data, err := os.ReadFile(d.path)
	if err != nil {
		return fmt.Errorf("failed to read agent directory: %w", err)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse agent directory: %w", err)
	}

	agents := make(map[int64]string, len(raw))
	for key, phone := range raw {
		id, err := ParsePropertyID(key)
		if err != nil {
			return fmt.Errorf("agent directory key %q: %w", key, err)
		}
		phone = strings.TrimSpace(phone)
		if phone == "" {
			return fmt.Errorf("agent directory entry %d has no phone", id)
		}
		agents[id] = phone
	}

	d.agents.Store(&agents)
	d.logger.Info("agent directory loaded", zap.String("path", d.path), zap.Int("agents", len(agents)))
	return nil
}

// AgentFor returns the agent for a property, if any
func (d *AgentDirectory) AgentFor(propertyID int64) (model.AgentRecord, bool) {
	agents := d.agents.Load()
	if agents == nil {
		return model.AgentRecord{}, false
	}
	phone, ok := (*agents)[propertyID]
	if !ok {
		return model.AgentRecord{}, false
	}
	return model.AgentRecord{PropertyID: propertyID, Phone: phone}, true
}

// Len returns the number of agent entries
func (d *AgentDirectory) Len() int {
	agents := d.agents.Load()
	if agents == nil {
		return 0
	}
	return len(*agents)
}

// CatalogReader exposes the current catalog snapshot
type CatalogReader interface {
	Current() *catalog.Catalog
}

// HandoffResolver answers which listing and agent a property id refers to
type HandoffResolver struct {
	catalog CatalogReader
	agents  *AgentDirectory
}

// NewHandoffResolver creates a resolver over the catalog and agent directory
func NewHandoffResolver(cat CatalogReader, agents *AgentDirectory) *HandoffResolver {
	return &HandoffResolver{catalog: cat, agents: agents}
}

// Resolve returns the listing's location and neighborhood
func (r *HandoffResolver) Resolve(propertyID int64) (location, neighborhood string, ok bool) {
	listing, ok := r.catalog.Current().Lookup(propertyID)
	if !ok {
		return "", "", false
	}
	return listing.Location, listing.Neighborhood, true
}

// AgentFor returns the agent record for a property, if any
func (r *HandoffResolver) AgentFor(propertyID int64) (model.AgentRecord, bool) {
	return r.agents.AgentFor(propertyID)
}
