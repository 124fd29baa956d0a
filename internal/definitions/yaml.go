package definitions

import (
	"fmt"
	"os"

	"github.com/tiendc/go-deepcopy"
	"gopkg.in/yaml.v3"

	"pagewright/internal/domain"
)

type fileDefinitions struct {
	PageTypes map[string]fileDefinition `yaml:"page_types"`
}

type fileDefinition struct {
	TypeLabelKey  string                   `yaml:"type_label_key"`
	Properties    map[string]PropertyGroup `yaml:"properties"`
	InitialBlocks []fileBlock              `yaml:"initial_blocks"`
}

type fileBlock struct {
	ID          string         `yaml:"id"`
	Type        string         `yaml:"type"`
	Props       map[string]any `yaml:"props"`
	Children    []fileBlock    `yaml:"children"`
	IsTemplated bool           `yaml:"is_templated"`
}

func (b fileBlock) block() domain.Block {
	out := domain.Block{ID: b.ID, Type: b.Type, Props: b.Props, IsTemplated: b.IsTemplated}
	for _, c := range b.Children {
		out.Children = append(out.Children, c.block())
	}
	return out
}

// FromYAML parses page definitions from a definitions file body. Each
// definition is validated; registration is left to the caller.
func FromYAML(data []byte) (map[string]PageDefinition, error) {
	var f fileDefinitions
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid definitions yaml: %w", err)
	}
	out := make(map[string]PageDefinition, len(f.PageTypes))
	for name, fd := range f.PageTypes {
		def := PageDefinition{
			TypeLabelKey: fd.TypeLabelKey,
			Properties:   fd.Properties,
		}
		if def.Properties == nil {
			def.Properties = map[string]PropertyGroup{}
		}
		if len(fd.InitialBlocks) > 0 {
			template := make([]domain.Block, 0, len(fd.InitialBlocks))
			for _, b := range fd.InitialBlocks {
				template = append(template, b.block())
			}
			def.InitialBlocks = staticBlocks(template)
		}
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("page type %s: %w", name, err)
		}
		out[name] = def
	}
	return out, nil
}

// LoadFile reads page definitions from path.
func LoadFile(path string) (map[string]PageDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

func staticBlocks(template []domain.Block) func() []domain.Block {
	return func() []domain.Block {
		var blocks []domain.Block
		if err := deepcopy.Copy(&blocks, &template); err != nil {
			panic(fmt.Sprintf("definitions: copy initial blocks: %v", err))
		}
		return blocks
	}
}
