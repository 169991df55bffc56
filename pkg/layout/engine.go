// Package layout walks a catalog project and produces a positioned element
// set for the whiteboard renderer: one card per item, version badges and part
// cards fanned out to the right, and connector arrows between them.
//
// The pass is deterministic, single-sweep, top-to-bottom: given the same
// project and a seeded id generator, two passes produce identical output.
// Versions are laid out in slice order, not VersionNumber order; when the two
// disagree a debug line is logged rather than silently reordering.
package layout

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/partboard/partboard/pkg/assets"
	"github.com/partboard/partboard/pkg/board"
	"github.com/partboard/partboard/pkg/catalog"
)

// =============================================================================
// Layout Configuration
// =============================================================================

// Config holds the fixed layout constants. The three card tiers stay visually
// distinct: item cards are the widest, version badges the narrowest, part
// cards in between, each with its own background color.
type Config struct {
	StartX float64
	StartY float64

	ItemCardWidth  float64
	ItemCardHeight float64
	// ItemImageExtra is added to the card height when a hero image is embedded.
	ItemImageExtra float64

	VersionBadgeWidth  float64
	VersionBadgeHeight float64

	PartCardWidth  float64
	PartCardHeight float64

	ColumnGapX float64 // horizontal margin between columns
	PartGapY   float64 // vertical margin between stacked part cards
	ItemGapY   float64 // vertical margin between items

	TitleFontSize   float64
	MetaFontSize    float64
	LabelFontSize   float64
	SummaryFontSize float64

	ArrowGap float64 // gap between an arrow endpoint and its bound element

	ItemCardColor    string
	VersionBadgeColor string
	PartCardColor    string

	CardPadding float64
}

// DefaultConfig returns the standard layout constants.
func DefaultConfig() Config {
	return Config{
		StartX: 0,
		StartY: 0,

		ItemCardWidth:  280,
		ItemCardHeight: 120,
		ItemImageExtra: 150,

		VersionBadgeWidth:  150,
		VersionBadgeHeight: 56,

		PartCardWidth:  210,
		PartCardHeight: 88,

		ColumnGapX: 70,
		PartGapY:   24,
		ItemGapY:   90,

		TitleFontSize:   28,
		MetaFontSize:    16,
		LabelFontSize:   18,
		SummaryFontSize: 13,

		ArrowGap: 8,

		ItemCardColor:     "#e7f1ff",
		VersionBadgeColor: "#fff3cd",
		PartCardColor:     "#e2f6e9",

		CardPadding: 12,
	}
}

// =============================================================================
// Engine
// =============================================================================

// Engine produces board elements from catalog projects.
type Engine struct {
	cfg     Config
	factory *board.Factory
	fetcher *assets.Fetcher
	logger  *log.Logger
}

// Options configures an Engine.
type Options struct {
	// IDs seeds element identity. Nil defaults to random UUIDs; pass a
	// board.SequenceGenerator for reproducible output.
	IDs board.IDGenerator

	// Fetcher enables hero-image embedding for LayoutProjectWithImages.
	// Nil is valid; the with-images variant then emits cards without images.
	Fetcher *assets.Fetcher

	// Logger for progress and warnings. Nil falls back to log.Default().
	Logger *log.Logger

	// Config overrides the default layout constants.
	Config *Config
}

// New creates a layout engine.
func New(opts Options) *Engine {
	cfg := DefaultConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		cfg:     cfg,
		factory: board.NewFactory(opts.IDs),
		fetcher: opts.Fetcher,
		logger:  logger,
	}
}

// LayoutProject produces the positioned element set for a project without
// embedded images. Synchronous and pure with respect to its input.
func (e *Engine) LayoutProject(p *catalog.Project) []board.Element {
	pass := e.newPass(nil)
	pass.run(p)
	return pass.elements
}

// LayoutProjectWithImages produces the positioned element set and the
// embedded-file map, fetching each item's hero image and inlining it.
// A fetch failure for a single image is non-fatal: that item's card is
// emitted without an image and layout continues for the remaining items.
func (e *Engine) LayoutProjectWithImages(ctx context.Context, p *catalog.Project) ([]board.Element, map[string]board.EmbeddedFile, error) {
	store := assets.NewImageStore()

	if e.fetcher != nil {
		for i := range p.Items {
			item := &p.Items[i]
			if item.HeroImage == "" {
				continue
			}
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			if _, err := e.fetcher.Fetch(ctx, store, item.HeroImage); err != nil {
				e.logger.Warn("hero image skipped", "item", item.Name, "err", err)
			}
		}
	}

	pass := e.newPass(store)
	pass.run(p)
	return pass.elements, store.Files(), nil
}

// =============================================================================
// Layout Pass
// =============================================================================

// pass holds the mutable state of one layout sweep.
type pass struct {
	cfg     Config
	factory *board.Factory
	logger  *log.Logger
	store   *assets.ImageStore // nil when images are not embedded

	elements []board.Element
	cursorY  float64
}

func (e *Engine) newPass(store *assets.ImageStore) *pass {
	return &pass{
		cfg:     e.cfg,
		factory: e.factory,
		logger:  e.logger,
		store:   store,
		cursorY: e.cfg.StartY,
	}
}

// emit appends an element, marking it as layout-generated.
func (p *pass) emit(e board.Element, groupID string) string {
	e.Generated = true
	if groupID != "" {
		e.GroupIDs = []string{groupID}
	}
	p.elements = append(p.elements, e)
	return e.ID
}

func (p *pass) run(project *catalog.Project) {
	p.emitHeader(project)
	for i := range project.Items {
		p.emitItem(&project.Items[i])
	}
}

// emitHeader writes the project title and a retailer/due-date metadata line
// above the content area.
func (p *pass) emitHeader(project *catalog.Project) {
	cfg := p.cfg

	title := p.factory.Text(cfg.StartX, p.cursorY, project.Title, cfg.TitleFontSize, 0)
	p.cursorY += title.Height
	p.emit(title, "")

	meta := headerMeta(project)
	if meta != "" {
		m := p.factory.Text(cfg.StartX, p.cursorY+4, meta, cfg.MetaFontSize, 0)
		p.cursorY += m.Height + 4
		p.emit(m, "")
	}

	p.cursorY += cfg.ItemGapY / 2
}

func headerMeta(project *catalog.Project) string {
	switch {
	case project.Retailer != "" && project.DueDate != "":
		return fmt.Sprintf("%s · due %s", project.Retailer, project.DueDate)
	case project.Retailer != "":
		return project.Retailer
	case project.DueDate != "":
		return "due " + project.DueDate
	}
	return ""
}

// emitItem writes one item card plus its versions/parts fan-out, then
// advances the vertical cursor past the tallest column produced.
func (p *pass) emitItem(item *catalog.Item) {
	cfg := p.cfg
	x, y := cfg.StartX, p.cursorY

	fileID := ""
	if p.store != nil && item.HeroImage != "" {
		fileID, _ = p.store.Lookup(item.HeroImage)
	}

	cardH := cfg.ItemCardHeight
	if fileID != "" {
		cardH += cfg.ItemImageExtra
	}

	groupID := p.factory.NewGroupID()

	card := p.factory.Rectangle(x, y, cfg.ItemCardWidth, cardH)
	card.BackgroundColor = cfg.ItemCardColor
	cardID := p.emit(card, groupID)

	name := p.factory.Text(x+cfg.CardPadding, y+cfg.CardPadding, item.Name, cfg.LabelFontSize,
		cfg.ItemCardWidth-2*cfg.CardPadding)
	p.emit(name, groupID)

	summary := p.factory.Text(x+cfg.CardPadding, y+cfg.CardPadding+name.Height+4,
		itemSummary(item), cfg.SummaryFontSize, cfg.ItemCardWidth-2*cfg.CardPadding)
	p.emit(summary, groupID)

	if fileID != "" {
		img := p.factory.Image(x+cfg.CardPadding, y+cfg.ItemCardHeight-cfg.CardPadding,
			cfg.ItemCardWidth-2*cfg.CardPadding, cfg.ItemImageExtra, fileID)
		p.emit(img, groupID)
	}

	var columnH float64
	switch c := item.Content().(type) {
	case catalog.Versioned:
		if !item.VersionsInNumericOrder() {
			p.logger.Debug("versions laid out in array order, not numeric order", "item", item.Name)
		}
		columnH = p.emitVersions(item, c.Versions, cardID, x, y, cardH)
	case catalog.Legacy:
		columnH = p.emitPartColumn(c.Parts, cardID, x+cfg.ItemCardWidth+cfg.ColumnGapX, y, x, y, cardH)
	}

	p.cursorY = y + max(cardH, columnH) + cfg.ItemGapY
}

func itemSummary(item *catalog.Item) string {
	if item.HasVersions() {
		return fmt.Sprintf("%d versions · %d parts", len(item.Versions), item.PartCount())
	}
	return fmt.Sprintf("%d parts", len(item.Parts))
}

// emitVersions lays version badges to the right of the item card, each with
// its parts column beneath, and returns the tallest column height.
func (p *pass) emitVersions(item *catalog.Item, versions []catalog.Version, cardID string, itemX, itemY, cardH float64) float64 {
	cfg := p.cfg
	colX := itemX + cfg.ItemCardWidth + cfg.ColumnGapX
	var tallest float64

	for i := range versions {
		v := &versions[i]

		badgeGroup := p.factory.NewGroupID()
		badge := p.factory.Rectangle(colX, itemY, cfg.VersionBadgeWidth, cfg.VersionBadgeHeight)
		badge.BackgroundColor = cfg.VersionBadgeColor
		badgeID := p.emit(badge, badgeGroup)

		label := p.factory.Text(colX+cfg.CardPadding, itemY+cfg.CardPadding,
			versionLabel(v), cfg.LabelFontSize, cfg.VersionBadgeWidth-2*cfg.CardPadding)
		p.emit(label, badgeGroup)

		p.connect(cardID, badgeID,
			itemX+cfg.ItemCardWidth, itemY+cardH/2,
			colX, itemY+cfg.VersionBadgeHeight/2)

		partsY := itemY + cfg.VersionBadgeHeight + cfg.PartGapY
		partsH := p.emitParts(v.Parts, badgeID, colX, partsY,
			colX+cfg.VersionBadgeWidth/2, itemY+cfg.VersionBadgeHeight)

		colH := cfg.VersionBadgeHeight + partsH
		tallest = max(tallest, colH)

		colX += cfg.PartCardWidth + cfg.ColumnGapX
	}
	return tallest
}

func versionLabel(v *catalog.Version) string {
	if v.VersionName != "" {
		return fmt.Sprintf("v%d · %s", v.VersionNumber, v.VersionName)
	}
	return fmt.Sprintf("v%d", v.VersionNumber)
}

// emitPartColumn lays legacy parts in a column to the right of the item card,
// connecting item -> part for each. Returns the column height.
func (p *pass) emitPartColumn(parts []catalog.Part, cardID string, colX, colY, itemX, itemY, cardH float64) float64 {
	return p.emitParts(parts, cardID, colX, colY,
		itemX+p.cfg.ItemCardWidth, itemY+cardH/2)
}

// emitParts stacks part cards at (colX, startY), drawing an arrow from the
// parent anchor point to each card. Returns the stacked height including
// inter-card gaps.
func (p *pass) emitParts(parts []catalog.Part, parentID string, colX, startY, anchorX, anchorY float64) float64 {
	cfg := p.cfg
	y := startY

	for i := range parts {
		part := &parts[i]

		partGroup := p.factory.NewGroupID()
		card := p.factory.Rectangle(colX, y, cfg.PartCardWidth, cfg.PartCardHeight)
		card.BackgroundColor = cfg.PartCardColor
		cardID := p.emit(card, partGroup)

		text := p.factory.Text(colX+cfg.CardPadding, y+cfg.CardPadding,
			partLabel(part), cfg.SummaryFontSize, cfg.PartCardWidth-2*cfg.CardPadding)
		p.emit(text, partGroup)

		p.connect(parentID, cardID, anchorX, anchorY, colX, y+cfg.PartCardHeight/2)

		y += cfg.PartCardHeight + cfg.PartGapY
	}

	return y - startY
}

func partLabel(part *catalog.Part) string {
	label := part.Name
	attrs := joinAttrs(part.Finish, part.Color, part.Texture)
	if attrs != "" {
		label += "\n" + attrs
	}
	return label
}

func joinAttrs(attrs ...string) string {
	out := ""
	for _, a := range attrs {
		if a == "" {
			continue
		}
		if out != "" {
			out += " · "
		}
		out += a
	}
	return out
}

// connect emits an arrow from (x1,y1) to (x2,y2) bound to the given element
// ids. Endpoints are pulled in by the configured gap on each side.
func (p *pass) connect(fromID, toID string, x1, y1, x2, y2 float64) {
	gap := p.cfg.ArrowGap
	sx := x1 + gap
	dx := x2 - gap - sx
	dy := y2 - y1

	arrow := p.factory.Arrow(sx, y1, dx, dy,
		&board.Binding{ElementID: fromID, Gap: gap},
		&board.Binding{ElementID: toID, Gap: gap})
	p.emit(arrow, "")
}
