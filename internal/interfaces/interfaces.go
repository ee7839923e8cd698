// Package interfaces defines the core interfaces used for dependency injection
// and the wire types of the studio method catalogue shared by client and peer.
package interfaces

import (
	"context"
	"encoding/json"
	"time"
)

// Method names of the studio catalogue
const (
	MethodPing               = "system.ping"
	MethodListMethods        = "system.listMethods"
	MethodHello              = "system.hello"
	MethodCreateDesign       = "design.create"
	MethodGetDesign          = "design.get"
	MethodListDesigns        = "design.list"
	MethodSearchTemplates    = "template.search"
	MethodGenerateDesign     = "ai.generateDesign"
	MethodCreateFromTemplate = "design.createFromTemplate"
)

// Handshake is the unsolicited system.hello notification sent by the peer on connect
type Handshake struct {
	Server  string   `json:"server"`
	Version string   `json:"version"`
	Methods []string `json:"methods"`
}

// PingResult answers system.ping
type PingResult struct {
	Status     string    `json:"status"`
	ServerTime time.Time `json:"serverTime"`
	Uptime     string    `json:"uptime"`
}

// Element is a single visual element placed on a design canvas
type Element struct {
	Type    string `json:"type"` // "text", "shape", "image"
	Content string `json:"content,omitempty"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Color   string `json:"color,omitempty"`
}

// Design is a stored design record
type Design struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Elements   []Element `json:"elements"`
	Source     string    `json:"source"` // "manual", "template", "ai"
	TemplateID string    `json:"templateId,omitempty"`
	Prompt     string    `json:"prompt,omitempty"`
	Revision   string    `json:"revision"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Template is an entry of the template catalogue
type Template struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"` // "poster", "social", "presentation", "logo", "flyer"
	Description string    `json:"description"`
	Tags        []string  `json:"tags,omitempty"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Elements    []Element `json:"elements"`
}

// CreateDesignParams are the params of design.create
type CreateDesignParams struct {
	Name     string    `json:"name"`
	Width    int       `json:"width,omitempty"`
	Height   int       `json:"height,omitempty"`
	Elements []Element `json:"elements,omitempty"`
}

// GetDesignParams are the params of design.get
type GetDesignParams struct {
	ID string `json:"id"`
}

// ListDesignsParams are the params of design.list
type ListDesignsParams struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// DesignList answers design.list
type DesignList struct {
	Designs []Design `json:"designs"`
	Total   int      `json:"total"`
}

// TemplateQuery are the params of template.search
type TemplateQuery struct {
	Query string   `json:"query,omitempty"`
	Types []string `json:"types,omitempty"`
	Limit int      `json:"limit,omitempty"`
}

// TemplateResults answers template.search
type TemplateResults struct {
	Templates []Template `json:"templates"`
	Total     int        `json:"total"`
}

// GenerateDesignParams are the params of ai.generateDesign
type GenerateDesignParams struct {
	Prompt string `json:"prompt"`
	Style  string `json:"style,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// CreateFromTemplateParams are the params of design.createFromTemplate
type CreateFromTemplateParams struct {
	TemplateID string `json:"templateId"`
	Name       string `json:"name,omitempty"`
}

// ProtocolClient is the correlated call surface consumed by the console and CLI
type ProtocolClient interface {
	// Connect establishes the connection or joins an in-flight attempt
	Connect(ctx context.Context) error

	// Call issues method and waits for its settlement
	Call(ctx context.Context, method string, params interface{}, timeout time.Duration) (json.RawMessage, error)

	// Disconnect tears the connection down and rejects every pending call
	Disconnect() error

	// IsConnected returns whether the connection is currently established
	IsConnected() bool

	// Handshake returns the last system.hello received, if any
	Handshake() *Handshake

	// GetLastError returns the last transport error
	GetLastError() error
}

// ConfigManager loads client profiles and peer settings
type ConfigManager interface {
	// GetConfigPath returns the path to the configuration file
	GetConfigPath() string

	// ListProfiles returns all available profile names
	ListProfiles() ([]string, error)
}
