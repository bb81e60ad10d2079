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
	"fmt"

	"github.com/AleutianAI/AleutianGraph/services/graph/component"
	"github.com/AleutianAI/AleutianGraph/services/graph/registry"
	"github.com/AleutianAI/AleutianGraph/services/graph/schema"
)

// DefaultRecipeName identifies DefaultRecipe.
const DefaultRecipeName = "default.v1"

// Node name prefixes produced by DefaultRecipe.
const (
	PrefixProvide = "provide_"
	PrefixTrain   = "train_"
	PrefixLoad    = "load_"
	PrefixRun     = "run_"
)

// DefaultRecipe derives the graph shape from the pipeline and policies.
//
// For each pipeline step, in order:
//
//   - a model provider becomes provide_<id>, a source node
//   - a trainable step becomes train_<id> (train mode) or load_<id>
//     (predict mode), followed by run_<id> which consumes that resource
//   - any other step becomes run_<id>
//
// Each run_ node consumes the previous run_ node, or the run input for the
// first step. Policies become train_<id> in train mode and load_<id> plus
// run_<id> in predict mode. End-to-end policies consume the last pipeline
// output; other policies consume the run input directly.
type DefaultRecipe struct{}

// Name returns DefaultRecipeName.
func (DefaultRecipe) Name() string {
	return DefaultRecipeName
}

// Translate builds the schema for mode.
func (DefaultRecipe) Translate(doc *Document, mode schema.Mode, reg *registry.Registry) (*schema.Schema, error) {
	if len(doc.Pipeline) == 0 && len(doc.Policies) == 0 {
		return nil, schema.NewConfigurationError("", schema.ErrMissingField, "pipeline or policies")
	}

	t := &defaultTranslation{
		mode:      mode,
		reg:       reg,
		b:         schema.NewBuilder(mode),
		providers: make(map[string]string),
	}
	if err := t.pipeline(doc.Pipeline); err != nil {
		return nil, err
	}
	if err := t.policies(doc.Policies); err != nil {
		return nil, err
	}
	return t.b.Build()
}

type defaultTranslation struct {
	mode schema.Mode
	reg  *registry.Registry
	b    *schema.Builder

	// providers maps provider step ids and component names to node names.
	providers map[string]string

	// lastRun is the most recent pipeline output node, "" before the first.
	lastRun string
}

func (t *defaultTranslation) pipeline(steps []Step) error {
	for i, id := range stepIDs(steps) {
		step := steps[i]
		entry, err := t.reg.Resolve(id, step.Name)
		if err != nil {
			return err
		}
		typ := entry.PrimaryType()
		if typ.IsPolicy() {
			return schema.NewConfigurationError(id, schema.ErrInvalidNode, "policy %q declared in pipeline", step.Name)
		}

		if typ.IsProvider() {
			name := PrefixProvide + id
			t.b.AddNode(schema.Node{
				Name:      name,
				Component: step.Name,
				Type:      typ,
				Kind:      schema.KindProvide,
				Source:    true,
				Config:    step.Config,
			})
			t.providers[id] = name
			if _, taken := t.providers[step.Name]; !taken {
				t.providers[step.Name] = name
			}
			continue
		}

		if err := t.step(id, step, entry, typ, t.lastRun); err != nil {
			return err
		}
		t.lastRun = PrefixRun + id
	}
	return nil
}

func (t *defaultTranslation) policies(steps []Step) error {
	for i, id := range stepIDs(steps) {
		step := steps[i]
		entry, err := t.reg.Resolve(id, step.Name)
		if err != nil {
			return err
		}
		typ := entry.PrimaryType()
		if !typ.IsPolicy() {
			return schema.NewConfigurationError(id, schema.ErrInvalidNode, "component %q in policies is a %s", step.Name, typ)
		}

		data := ""
		if typ == schema.TypePolicyWithEndToEnd {
			data = t.lastRun
		}
		if err := t.step(id, step, entry, typ, data); err != nil {
			return err
		}
	}
	return nil
}

// step adds the nodes for one non-provider step. data is the node whose
// output the step consumes, or "" to consume the run input.
func (t *defaultTranslation) step(id string, step Step, entry registry.Entry, typ schema.ComponentType, data string) error {
	trainable, err := resolveTrainable(id, step, entry)
	if err != nil {
		return err
	}
	model, err := t.resolveModel(id, step.ModelFrom)
	if err != nil {
		return err
	}

	base := schema.Node{
		Component: step.Name,
		Type:      typ,
		ModelFrom: model,
		Config:    step.Config,
	}
	withInputs := func(n schema.Node, inputs ...schema.Input) schema.Node {
		if data == "" {
			n.Source = true
		} else {
			inputs = append(inputs, schema.Input{Param: component.ParamData, From: data})
		}
		if model != "" {
			inputs = append(inputs, schema.Input{Param: component.ParamModel, From: model})
		}
		n.Inputs = inputs
		return n
	}

	policy := typ.IsPolicy()
	trainName := PrefixTrain + id

	switch {
	case trainable && t.mode == schema.ModeTrain:
		n := withInputs(base)
		n.Name = trainName
		n.Kind = schema.KindTrain
		t.b.AddNode(n)
		if policy {
			return nil
		}
		run := withInputs(base, schema.Input{Param: component.ParamResource, From: trainName})
		run.Name = PrefixRun + id
		run.Kind = schema.KindProcess
		t.b.AddNode(run)

	case trainable:
		load := base
		load.Name = PrefixLoad + id
		load.Kind = schema.KindLoad
		load.Trainable = true
		load.ResourceFrom = trainName
		if model != "" {
			load.Inputs = []schema.Input{{Param: component.ParamModel, From: model}}
		} else {
			load.Source = true
		}
		t.b.AddNode(load)
		run := withInputs(base, schema.Input{Param: component.ParamResource, From: load.Name})
		run.Name = PrefixRun + id
		run.Kind = schema.KindProcess
		t.b.AddNode(run)

	default:
		if policy && t.mode == schema.ModeTrain {
			// Frozen policies have nothing to train.
			return nil
		}
		run := withInputs(base)
		run.Name = PrefixRun + id
		run.Kind = schema.KindProcess
		t.b.AddNode(run)
	}
	return nil
}

func (t *defaultTranslation) resolveModel(id, ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	name, ok := t.providers[ref]
	if !ok {
		return "", schema.NewConfigurationError(id, schema.ErrNodeNotFound, "model_from %q does not name an earlier model provider", ref)
	}
	return name, nil
}

// resolveTrainable combines the registry default with the step override.
func resolveTrainable(id string, step Step, entry registry.Entry) (bool, error) {
	if step.Trainable == nil {
		return entry.Trainable, nil
	}
	if *step.Trainable && !entry.Trainable {
		return false, schema.NewConfigurationError(id, schema.ErrInvalidNode, "component %q is not trainable", step.Name)
	}
	return *step.Trainable, nil
}

// stepIDs assigns identities: the explicit id, else the component name, else
// the component name suffixed with the step index when the name repeats.
// Explicit ids are reserved first; a generated id that is already taken moves
// to the next free suffix.
func stepIDs(steps []Step) []string {
	counts := make(map[string]int, len(steps))
	taken := make(map[string]bool, len(steps))
	for _, s := range steps {
		if s.ID != "" {
			taken[s.ID] = true
		} else {
			counts[s.Name]++
		}
	}
	ids := make([]string, len(steps))
	for i, s := range steps {
		if s.ID != "" {
			ids[i] = s.ID
			continue
		}
		id := s.Name
		if counts[s.Name] > 1 || taken[id] {
			n := i
			id = fmt.Sprintf("%s%d", s.Name, n)
			for taken[id] {
				n++
				id = fmt.Sprintf("%s%d", s.Name, n)
			}
		}
		taken[id] = true
		ids[i] = id
	}
	return ids
}
