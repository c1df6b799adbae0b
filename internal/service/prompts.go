package service

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPromptsYAML []byte

// PromptConfig holds the prompts and schemas for every model-backed collaborator
type PromptConfig struct {
	Persona struct {
		System      string  `yaml:"system"`
		Temperature float32 `yaml:"temperature"`
		MaxTokens   int     `yaml:"max_tokens"`
	} `yaml:"persona"`
	Interpreter struct {
		System    string                 `yaml:"system"`
		User      string                 `yaml:"user"`
		MaxTokens int                    `yaml:"max_tokens"`
		Schema    map[string]interface{} `yaml:"schema"`
	} `yaml:"interpreter"`
	Research struct {
		System string `yaml:"system"`
	} `yaml:"research"`
	Listings struct {
		User       string                 `yaml:"user"`
		ExactUser  string                 `yaml:"exact_user"`
		ItemSchema map[string]interface{} `yaml:"item_schema"`
	} `yaml:"listings"`
	Commentary struct {
		User          string                 `yaml:"user"`
		ElementSchema map[string]interface{} `yaml:"element_schema"`
		PriceCheck    string                 `yaml:"price_check"`
		MarketTrend   string                 `yaml:"market_trend"`
	} `yaml:"commentary"`
}

// Prompts is a parsed PromptConfig with compiled templates and schemas
type Prompts struct {
	Config PromptConfig

	interpreterUser   *template.Template
	listingsUser      *template.Template
	listingsExactUser *template.Template
	commentaryUser    *template.Template
	priceCheckQ       *template.Template
	marketTrendQ      *template.Template

	interpreterSchema *gojsonschema.Schema
	listingSchema     *gojsonschema.Schema
	commentarySchema  *gojsonschema.Schema
}

// LoadDefaultPrompts parses the embedded prompts.yaml
func LoadDefaultPrompts() (*Prompts, error) {
	return ParsePrompts(defaultPromptsYAML)
}

// ParsePrompts parses a prompt definition document
func ParsePrompts(data []byte) (*Prompts, error) {
	var doc PromptConfig
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing prompts: %w", err)
	}

	p := &Prompts{Config: doc}
	templates := []struct {
		name string
		src  string
		dst  **template.Template
	}{
		{"interpreter.user", doc.Interpreter.User, &p.interpreterUser},
		{"listings.user", doc.Listings.User, &p.listingsUser},
		{"listings.exact_user", doc.Listings.ExactUser, &p.listingsExactUser},
		{"commentary.user", doc.Commentary.User, &p.commentaryUser},
		{"commentary.price_check", doc.Commentary.PriceCheck, &p.priceCheckQ},
		{"commentary.market_trend", doc.Commentary.MarketTrend, &p.marketTrendQ},
	}
	for _, t := range templates {
		if strings.TrimSpace(t.src) == "" {
			return nil, fmt.Errorf("prompt %s is empty", t.name)
		}
		tmpl, err := template.New(t.name).Option("missingkey=error").Parse(t.src)
		if err != nil {
			return nil, fmt.Errorf("parsing prompt %s: %w", t.name, err)
		}
		*t.dst = tmpl
	}

	schemas := []struct {
		name string
		src  map[string]interface{}
		dst  **gojsonschema.Schema
	}{
		{"interpreter.schema", doc.Interpreter.Schema, &p.interpreterSchema},
		{"listings.item_schema", doc.Listings.ItemSchema, &p.listingSchema},
		{"commentary.element_schema", doc.Commentary.ElementSchema, &p.commentarySchema},
	}
	for _, s := range schemas {
		if len(s.src) == 0 {
			return nil, fmt.Errorf("schema %s is empty", s.name)
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(s.src))
		if err != nil {
			return nil, fmt.Errorf("compiling schema %s: %w", s.name, err)
		}
		*s.dst = schema
	}

	return p, nil
}

func render(t *template.Template, data interface{}) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("rendering prompt %s: %w", t.Name(), err)
	}
	return strings.TrimSpace(b.String()), nil
}

// validateDocument checks a decoded JSON value against schema and flattens the violations
func validateDocument(schema *gojsonschema.Schema, doc interface{}) error {
	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("validating document: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("schema violation: %s", strings.Join(msgs, "; "))
}
