package prompt

import (
	"embed"
	"fmt"
	"sync"

	"github.com/codito/arey/internal/llm"
)

//go:embed templates/*.yml
var templateFS embed.FS

// builtinTemplateNames lists all built-in prompt templates.
var builtinTemplateNames = []string{
	"chatml",
	"alpaca",
}

var (
	cacheMu       sync.Mutex
	templateCache = map[string]*Prompt{}
)

// Load returns the named built-in template. Templates are read-only and
// cached for the process lifetime.
func Load(name string) (*Prompt, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if p, ok := templateCache[name]; ok {
		return p, nil
	}
	data, err := templateFS.ReadFile(fmt.Sprintf("templates/%s.yml", name))
	if err != nil {
		return nil, llm.Errorf(llm.CategoryTemplate, "prompt template %q not found", name)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, err
	}
	templateCache[name] = p
	return p, nil
}

// BuiltinTemplateNames returns the names of all built-in templates.
func BuiltinTemplateNames() []string {
	return builtinTemplateNames
}
