package storebuilder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dmitrijs2005/digitalmira/internal/common"
	"github.com/dmitrijs2005/digitalmira/internal/identity"
	"github.com/dmitrijs2005/digitalmira/internal/logging"
	"github.com/dmitrijs2005/digitalmira/internal/storage"
	"github.com/google/uuid"
)

// progressPerComponent is how much udyam progress each placed component is
// worth; eight components complete the module.
const progressPerComponent = 12.5

var (
	ErrUnknownComponent = errors.New("unknown component")
	ErrIndexOutOfRange  = errors.New("layout index out of range")
)

// Placement is a component placed on the canvas.
type Placement struct {
	ID          string `json:"id"`
	ComponentID string `json:"componentId"`
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	AddedAt     int64  `json:"addedAt"`
}

// ProgressRecorder is the part of the identity store the builder reports to.
type ProgressRecorder interface {
	IsAuthenticated(ctx context.Context) (bool, error)
	UpdateProgress(ctx context.Context, module identity.Module, value int) error
}

// Builder holds one tab's canvas. It is not safe for concurrent use.
type Builder struct {
	catalog  *Catalog
	durable  storage.Scope
	progress ProgressRecorder
	logger   logging.Logger
	now      func() time.Time

	layout []Placement
}

func New(catalog *Catalog, durable storage.Scope, progress ProgressRecorder, logger logging.Logger) *Builder {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Builder{
		catalog:  catalog,
		durable:  durable,
		progress: progress,
		logger:   logger.With("component", "storebuilder"),
		now:      time.Now,
	}
}

func (b *Builder) Catalog() *Catalog {
	return b.catalog
}

// Add appends the component with the given id to the canvas.
func (b *Builder) Add(componentID string) (Placement, error) {
	c, ok := b.catalog.Lookup(componentID)
	if !ok {
		return Placement{}, fmt.Errorf("%w: %q", ErrUnknownComponent, componentID)
	}

	p := Placement{
		ID:          uuid.NewString(),
		ComponentID: c.ID,
		Name:        c.Name,
		Icon:        c.Icon,
		AddedAt:     b.now().UnixMilli(),
	}
	b.layout = append(b.layout, p)
	return p, nil
}

// Remove deletes the placement at index (zero based).
func (b *Builder) Remove(index int) error {
	if index < 0 || index >= len(b.layout) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	b.layout = append(b.layout[:index], b.layout[index+1:]...)
	return nil
}

// Layout returns a copy of the current canvas.
func (b *Builder) Layout() []Placement {
	return append([]Placement(nil), b.layout...)
}

// Clear empties the canvas and forgets the saved layout.
func (b *Builder) Clear(ctx context.Context) error {
	b.layout = nil
	return b.durable.Delete(ctx, common.StoreLayoutKey)
}

// Save writes the canvas to durable storage. When someone is signed in the
// udyam module progress is set from the number of placed components.
func (b *Builder) Save(ctx context.Context) error {
	layout := b.layout
	if layout == nil {
		layout = []Placement{}
	}

	data, err := json.Marshal(layout)
	if err != nil {
		return fmt.Errorf("encode layout: %w", err)
	}
	if err := b.durable.Set(ctx, common.StoreLayoutKey, data); err != nil {
		return err
	}
	b.logger.Info(ctx, "layout saved", "components", len(layout))

	if b.progress == nil {
		return nil
	}

	ok, err := b.progress.IsAuthenticated(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	return b.progress.UpdateProgress(ctx, identity.Udyam, LayoutProgress(len(layout)))
}

// Load replaces the canvas with the saved layout, if any. A saved layout that
// cannot be decoded is logged and left alone.
func (b *Builder) Load(ctx context.Context) error {
	raw, err := b.durable.Get(ctx, common.StoreLayoutKey)
	if err != nil {
		return err
	}
	if raw == nil {
		return nil
	}

	var layout []Placement
	if err := json.Unmarshal(raw, &layout); err != nil {
		b.logger.Warn(ctx, "ignoring saved layout", "error", err)
		return nil
	}
	for i := range layout {
		upgradeLegacy(&layout[i])
	}
	b.layout = layout
	return nil
}

// upgradeLegacy converts an entry saved by the browser build, whose id is the
// component id and which has no componentId.
func upgradeLegacy(p *Placement) {
	if p.ComponentID != "" {
		return
	}
	p.ComponentID = p.ID
	p.ID = uuid.NewString()
}

// LayoutProgress is the udyam percentage earned by n placed components.
func LayoutProgress(n int) int {
	return int(math.Min(100, math.Round(float64(n)*progressPerComponent)))
}
