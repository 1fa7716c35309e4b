package editorconfig

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// PropertyType is the editor widget used for a property
type PropertyType string

const (
	PropertyNumber   PropertyType = "number"
	PropertyText     PropertyType = "text"
	PropertyBoolean  PropertyType = "boolean"
	PropertyDropdown PropertyType = "dropdown"
)

// Choice is one option of a dropdown property
type Choice struct {
	Value string `yaml:"value" json:"value"`
	Text  string `yaml:"text" json:"text"`
}

// Property describes a serializable property added to questions
type Property struct {
	// Name is set from the YAML key
	Name string `yaml:"-" json:"name"`

	Type         PropertyType `yaml:"type" json:"type"`
	Default      any          `yaml:"default" json:"default,omitempty"`
	Label        string       `yaml:"label" json:"label"`
	Category     string       `yaml:"category" json:"category,omitempty"`
	VisibleIndex int          `yaml:"visible_index" json:"visible_index,omitempty"`
	Choices      []Choice     `yaml:"choices" json:"choices,omitempty"`
}

// AllowsValue reports whether v is acceptable for a dropdown property.
// Non-dropdown properties accept anything.
func (p *Property) AllowsValue(v string) bool {
	if p.Type != PropertyDropdown || len(p.Choices) == 0 {
		return true
	}
	for _, c := range p.Choices {
		if c.Value == v {
			return true
		}
	}
	return false
}

// QuestionType is a custom question class
type QuestionType struct {
	Name        string     `yaml:"-" json:"name"`
	DisplayName string     `yaml:"display_name" json:"display_name"`
	Parent      string     `yaml:"parent" json:"parent"`
	Properties  []Property `yaml:"-" json:"properties"`
}

// UnmarshalYAML keeps properties in file order
func (q *QuestionType) UnmarshalYAML(node *yaml.Node) error {
	type plain QuestionType
	if err := node.Decode((*plain)(q)); err != nil {
		return err
	}
	props, err := orderedProperties(node, "properties")
	if err != nil {
		return err
	}
	q.Properties = props
	return nil
}

// questionsFile is the layout of config/questions.yaml
type questionsFile struct {
	Builtin            []string       `yaml:"builtin"`
	CustomTypes        []QuestionType `yaml:"-"`
	QuestionProperties []Property     `yaml:"-"`
}

// UnmarshalYAML decodes the keyed maps into ordered slices
func (f *questionsFile) UnmarshalYAML(node *yaml.Node) error {
	var head struct {
		Builtin []string `yaml:"builtin"`
	}
	if err := node.Decode(&head); err != nil {
		return err
	}
	f.Builtin = head.Builtin

	typesNode := mappingValue(node, "custom_types")
	if typesNode != nil {
		for j := 0; j+1 < len(typesNode.Content); j += 2 {
			var qt QuestionType
			if err := typesNode.Content[j+1].Decode(&qt); err != nil {
				return fmt.Errorf("custom type %s: %w", typesNode.Content[j].Value, err)
			}
			qt.Name = typesNode.Content[j].Value
			f.CustomTypes = append(f.CustomTypes, qt)
		}
	}

	props, err := orderedProperties(node, "question_properties")
	if err != nil {
		return err
	}
	f.QuestionProperties = props
	return nil
}

// mappingValue returns the value node under key in a mapping node
func mappingValue(node *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func orderedProperties(node *yaml.Node, key string) ([]Property, error) {
	propsNode := mappingValue(node, key)
	if propsNode == nil {
		return nil, nil
	}
	var props []Property
	for j := 0; j+1 < len(propsNode.Content); j += 2 {
		var p Property
		if err := propsNode.Content[j+1].Decode(&p); err != nil {
			return nil, fmt.Errorf("property %s: %w", propsNode.Content[j].Value, err)
		}
		p.Name = propsNode.Content[j].Value
		props = append(props, p)
	}
	return props, nil
}
