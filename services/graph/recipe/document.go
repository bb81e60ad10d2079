// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package recipe

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianGraph/services/graph/schema"
)

// Reserved step keys. Everything else in a step declaration is configuration.
const (
	keyName      = "name"
	keyID        = "id"
	keyModelFrom = "model_from"
	keyTrainable = "trainable"
)

// Document is the declarative pipeline configuration.
//
// YAML and JSON are both accepted; JSON is parsed as YAML.
type Document struct {
	// Recipe selects the translation strategy. Empty means DefaultRecipe.
	Recipe string `yaml:"recipe,omitempty" json:"recipe,omitempty" validate:"omitempty,identifier"`

	// Language is the run language code, e.g. "en".
	Language string `yaml:"language,omitempty" json:"language,omitempty" validate:"omitempty,max=35"`

	// Pipeline is the ordered list of NLU steps.
	Pipeline []Step `yaml:"pipeline,omitempty" json:"pipeline,omitempty" validate:"dive"`

	// Policies is the ordered list of dialogue policies.
	Policies []Step `yaml:"policies,omitempty" json:"policies,omitempty" validate:"dive"`

	// TrainSchema and PredictSchema are explicit node lists used by GraphRecipe.
	TrainSchema   []NodeSpec `yaml:"train_schema,omitempty" json:"train_schema,omitempty" validate:"dive"`
	PredictSchema []NodeSpec `yaml:"predict_schema,omitempty" json:"predict_schema,omitempty" validate:"dive"`
}

// Step is one pipeline or policy declaration.
type Step struct {
	// Name is the registered component name.
	Name string `validate:"required"`

	// ID overrides the derived step identity.
	ID string `validate:"omitempty,identifier"`

	// ModelFrom names the model-provider step this step uses.
	ModelFrom string

	// Trainable, when set, overrides the component's default trainability.
	Trainable *bool

	// Config holds every non-reserved key.
	Config map[string]any
}

// UnmarshalYAML splits reserved keys from configuration.
func (s *Step) UnmarshalYAML(value *yaml.Node) error {
	var raw map[string]any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if err := s.fromMap(raw); err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	return nil
}

// UnmarshalJSON splits reserved keys from configuration.
func (s *Step) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return s.fromMap(raw)
}

func (s *Step) fromMap(raw map[string]any) error {
	*s = Step{Config: make(map[string]any, len(raw))}
	for k, v := range raw {
		switch k {
		case keyName:
			name, ok := v.(string)
			if !ok {
				return errors.New("step name must be a string")
			}
			s.Name = name
		case keyID:
			s.ID = fmt.Sprint(v)
		case keyModelFrom:
			ref, ok := v.(string)
			if !ok {
				return errors.New("model_from must be a string")
			}
			s.ModelFrom = ref
		case keyTrainable:
			b, ok := v.(bool)
			if !ok {
				return errors.New("trainable must be a boolean")
			}
			s.Trainable = &b
		default:
			s.Config[k] = v
		}
	}
	return nil
}

// MarshalYAML writes the step back in its flat form.
func (s Step) MarshalYAML() (any, error) {
	return s.toMap(), nil
}

// MarshalJSON writes the step back in its flat form.
func (s Step) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.toMap())
}

func (s Step) toMap() map[string]any {
	out := make(map[string]any, len(s.Config)+4)
	for k, v := range s.Config {
		out[k] = v
	}
	out[keyName] = s.Name
	if s.ID != "" {
		out[keyID] = s.ID
	}
	if s.ModelFrom != "" {
		out[keyModelFrom] = s.ModelFrom
	}
	if s.Trainable != nil {
		out[keyTrainable] = *s.Trainable
	}
	return out
}

// NodeSpec is one explicit node of a GraphRecipe document.
type NodeSpec struct {
	Name         string            `yaml:"name" json:"name" validate:"required,identifier"`
	Uses         string            `yaml:"uses" json:"uses" validate:"required"`
	Kind         string            `yaml:"kind" json:"kind" validate:"required,oneof=provide train process load"`
	Type         string            `yaml:"type,omitempty" json:"type,omitempty"`
	Needs        Needs             `yaml:"needs,omitempty" json:"needs,omitempty" validate:"dive"`
	ModelFrom    string            `yaml:"model_from,omitempty" json:"model_from,omitempty"`
	ResourceFrom string            `yaml:"resource_from,omitempty" json:"resource_from,omitempty"`
	Source       bool              `yaml:"source,omitempty" json:"source,omitempty"`
	Config       map[string]any    `yaml:"config,omitempty" json:"config,omitempty"`
}

// Need binds one node parameter to the node producing its value.
type Need struct {
	Param string `yaml:"param" json:"param" validate:"required"`
	From  string `yaml:"from" json:"from" validate:"required"`
}

// Needs is a node's input list. It is written either as a mapping of param
// to source node, ordered by param name, or as a list of {param, from}
// pairs, kept in declared order.
type Needs []Need

// UnmarshalYAML accepts the mapping and list forms.
func (n *Needs) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		var list []Need
		if err := value.Decode(&list); err != nil {
			return err
		}
		*n = list
	case yaml.MappingNode:
		var m map[string]string
		if err := value.Decode(&m); err != nil {
			return err
		}
		*n = needsFromMap(m)
	default:
		return fmt.Errorf("line %d: needs must be a mapping or a list", value.Line)
	}
	return nil
}

// UnmarshalJSON accepts the mapping and list forms.
func (n *Needs) UnmarshalJSON(data []byte) error {
	var list []Need
	if err := json.Unmarshal(data, &list); err == nil {
		*n = list
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return errors.New("needs must be an object or an array")
	}
	*n = needsFromMap(m)
	return nil
}

func needsFromMap(m map[string]string) Needs {
	params := make([]string, 0, len(m))
	for p := range m {
		params = append(params, p)
	}
	sort.Strings(params)
	out := make(Needs, 0, len(params))
	for _, p := range params {
		out = append(out, Need{Param: p, From: m[p]})
	}
	return out
}

// docValidate is the validator for configuration documents.
var docValidate *validator.Validate

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

func init() {
	docValidate = validator.New()
	_ = docValidate.RegisterValidation("identifier", validateIdentifier)
}

// validateIdentifier accepts names safe to use as node identities.
func validateIdentifier(fl validator.FieldLevel) bool {
	return identifierPattern.MatchString(fl.Field().String())
}

// Validate checks the document structure.
//
// Outputs:
//
//	error - A *schema.ConfigurationError for the first invalid field.
func (d *Document) Validate() error {
	err := docValidate.Struct(d)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		sentinel := schema.ErrInvalidNode
		if fe.Tag() == "required" {
			sentinel = schema.ErrMissingField
		}
		return schema.NewConfigurationError("", sentinel, "field %s failed %q validation", fe.Namespace(), fe.Tag())
	}
	return schema.NewConfigurationError("", schema.ErrInvalidNode, "%v", err)
}

// Parse decodes a YAML or JSON document and validates it.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, schema.NewConfigurationError("", schema.ErrInvalidNode, "parse document: %v", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Load reads and parses the document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", path, err)
	}
	return Parse(data)
}

// Marshal encodes the document as YAML.
func (d *Document) Marshal() ([]byte, error) {
	return yaml.Marshal(d)
}
