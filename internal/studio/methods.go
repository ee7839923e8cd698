package studio

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/studioforge/studiorpc/internal/dispatcher"
	"github.com/studioforge/studiorpc/internal/interfaces"
	"github.com/studioforge/studiorpc/internal/jsonrpc"
	"github.com/studioforge/studiorpc/internal/logging"
)

// Latency sets the simulated processing time of the slow methods
type Latency struct {
	Create          time.Duration `yaml:"create"`
	FromTemplate    time.Duration `yaml:"from_template"`
	GenerateBase    time.Duration `yaml:"generate_base"`
	GeneratePerWord time.Duration `yaml:"generate_per_word"`
	GenerateMax     time.Duration `yaml:"generate_max"`
}

// DefaultLatency returns the latencies the peer runs with out of the box
func DefaultLatency() Latency {
	return Latency{
		Create:          300 * time.Millisecond,
		FromTemplate:    200 * time.Millisecond,
		GenerateBase:    1 * time.Second,
		GeneratePerWord: 50 * time.Millisecond,
		GenerateMax:     5 * time.Second,
	}
}

// GenerateDelay is the simulated generation time for prompt
func (l Latency) GenerateDelay(prompt string) time.Duration {
	return dispatcher.Scaled(l.GenerateBase, l.GeneratePerWord, len(strings.Fields(prompt)), l.GenerateMax)
}

// Service binds the design and template methods to a store
type Service struct {
	store   *Store
	latency Latency
	logger  *logging.Logger
}

// NewService creates the method handlers over store
func NewService(store *Store, latency Latency, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.GetStudioLogger()
	}
	return &Service{store: store, latency: latency, logger: logger}
}

// Register adds every studio method to reg
func (s *Service) Register(reg *dispatcher.Registry) error {
	methods := map[string]dispatcher.Handler{
		interfaces.MethodCreateDesign:       s.createDesign,
		interfaces.MethodGetDesign:          s.getDesign,
		interfaces.MethodListDesigns:        s.listDesigns,
		interfaces.MethodSearchTemplates:    s.searchTemplates,
		interfaces.MethodGenerateDesign:     s.generateDesign,
		interfaces.MethodCreateFromTemplate: s.createFromTemplate,
	}
	for name, h := range methods {
		if err := reg.Register(name, h); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) createDesign(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params interfaces.CreateDesignParams
	if err := dispatcher.DecodeParams(raw, &params); err != nil {
		return nil, err
	}
	if strings.TrimSpace(params.Name) == "" {
		return nil, jsonrpc.InvalidParams(errors.New("name is required"))
	}
	if params.Width < 0 || params.Height < 0 {
		return nil, jsonrpc.InvalidParams(errors.New("canvas size cannot be negative"))
	}

	if err := dispatcher.Simulate(ctx, s.latency.Create); err != nil {
		return nil, err
	}

	d := s.store.Create(interfaces.Design{
		Name:     params.Name,
		Width:    params.Width,
		Height:   params.Height,
		Elements: params.Elements,
		Source:   "manual",
	})
	s.logger.Info("Design created", "id", d.ID, "name", d.Name)
	return d, nil
}

func (s *Service) getDesign(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params interfaces.GetDesignParams
	if err := dispatcher.DecodeParams(raw, &params); err != nil {
		return nil, err
	}
	if params.ID == "" {
		return nil, jsonrpc.InvalidParams(errors.New("id is required"))
	}

	d, ok := s.store.Get(params.ID)
	if !ok {
		return nil, jsonrpc.NotFound("design not found: %s", params.ID)
	}
	return d, nil
}

func (s *Service) listDesigns(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params interfaces.ListDesignsParams
	if err := dispatcher.DecodeParams(raw, &params); err != nil {
		return nil, err
	}
	if params.Limit < 0 || params.Offset < 0 {
		return nil, jsonrpc.InvalidParams(errors.New("limit and offset cannot be negative"))
	}

	designs, total := s.store.List(params.Offset, params.Limit)
	return interfaces.DesignList{Designs: designs, Total: total}, nil
}

func (s *Service) searchTemplates(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var query interfaces.TemplateQuery
	if err := dispatcher.DecodeParams(raw, &query); err != nil {
		return nil, err
	}

	found := s.store.SearchTemplates(query)
	return interfaces.TemplateResults{Templates: found, Total: len(found)}, nil
}

func (s *Service) generateDesign(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params interfaces.GenerateDesignParams
	if err := dispatcher.DecodeParams(raw, &params); err != nil {
		return nil, err
	}
	prompt := strings.TrimSpace(params.Prompt)
	if prompt == "" {
		return nil, jsonrpc.InvalidParams(errors.New("prompt is required"))
	}

	if err := dispatcher.Simulate(ctx, s.latency.GenerateDelay(prompt)); err != nil {
		return nil, err
	}

	width, height := params.Width, params.Height
	if width == 0 {
		width = DefaultWidth
	}
	if height == 0 {
		height = DefaultHeight
	}

	d := s.store.Create(interfaces.Design{
		Name:     generatedName(prompt),
		Width:    width,
		Height:   height,
		Elements: generatedElements(prompt, params.Style, width, height),
		Source:   "ai",
		Prompt:   prompt,
	})
	s.logger.Info("Design generated", "id", d.ID, "words", len(strings.Fields(prompt)))
	return d, nil
}

func (s *Service) createFromTemplate(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params interfaces.CreateFromTemplateParams
	if err := dispatcher.DecodeParams(raw, &params); err != nil {
		return nil, err
	}
	if params.TemplateID == "" {
		return nil, jsonrpc.InvalidParams(errors.New("templateId is required"))
	}

	tpl, ok := s.store.Template(params.TemplateID)
	if !ok {
		return nil, jsonrpc.NotFound("template not found: %s", params.TemplateID)
	}

	if err := dispatcher.Simulate(ctx, s.latency.FromTemplate); err != nil {
		return nil, err
	}

	name := params.Name
	if name == "" {
		name = tpl.Name
	}
	d := s.store.Create(interfaces.Design{
		Name:       name,
		Width:      tpl.Width,
		Height:     tpl.Height,
		Elements:   tpl.Elements,
		Source:     "template",
		TemplateID: tpl.ID,
	})
	s.logger.Info("Design created from template", "id", d.ID, "template", tpl.ID)
	return d, nil
}

var stylePalette = map[string]string{
	"minimal": "#f8f9fa",
	"bold":    "#ef476f",
	"dark":    "#1d1b2f",
	"pastel":  "#ffd6e0",
}

func generatedName(prompt string) string {
	words := strings.Fields(prompt)
	if len(words) > 5 {
		words = words[:5]
	}
	return "AI: " + strings.Join(words, " ")
}

func generatedElements(prompt, style string, width, height int) []interfaces.Element {
	background, ok := stylePalette[strings.ToLower(style)]
	if !ok {
		background = "#118ab2"
	}
	return []interfaces.Element{
		{Type: "shape", X: 0, Y: 0, Width: width, Height: height, Color: background},
		{Type: "text", Content: prompt, X: width / 10, Y: height / 3, Width: width * 8 / 10, Height: height / 5, Color: "#ffffff"},
	}
}
