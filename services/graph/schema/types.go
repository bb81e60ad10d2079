// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package schema

import "fmt"

// Mode is the run mode a schema was translated for.
type Mode string

const (
	// ModeTrain produces and caches artifacts.
	ModeTrain Mode = "train"

	// ModePredict consumes cached artifacts and never trains.
	ModePredict Mode = "predict"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeTrain || m == ModePredict
}

// ParseMode converts a string to a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown run mode %q", s)
	}
	return m, nil
}

// Kind tells the executor which component operation a node invokes.
type Kind string

const (
	// KindProvide calls Provider.Provide. Used for model providers.
	KindProvide Kind = "provide"

	// KindTrain calls Trainable.Train and persists the artifact.
	KindTrain Kind = "train"

	// KindProcess calls Component.Process.
	KindProcess Kind = "process"

	// KindLoad reads a previously trained artifact and calls Trainable.Load.
	KindLoad Kind = "load"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindProvide, KindTrain, KindProcess, KindLoad:
		return true
	}
	return false
}

// ComponentType is the fixed enumeration of component roles.
type ComponentType string

const (
	TypeModelProvider         ComponentType = "model-provider"
	TypeTokenizer             ComponentType = "tokenizer"
	TypeFeaturizer            ComponentType = "featurizer"
	TypeIntentClassifier      ComponentType = "intent-classifier"
	TypeEntityExtractor       ComponentType = "entity-extractor"
	TypePolicyWithoutEndToEnd ComponentType = "policy-without-end-to-end"
	TypePolicyWithEndToEnd    ComponentType = "policy-with-end-to-end"
)

// ComponentTypes lists every component type in declaration order.
var ComponentTypes = []ComponentType{
	TypeModelProvider,
	TypeTokenizer,
	TypeFeaturizer,
	TypeIntentClassifier,
	TypeEntityExtractor,
	TypePolicyWithoutEndToEnd,
	TypePolicyWithEndToEnd,
}

// Valid reports whether t is one of the known component types.
func (t ComponentType) Valid() bool {
	for _, known := range ComponentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsPolicy reports whether t is a dialogue policy type.
func (t ComponentType) IsPolicy() bool {
	return t == TypePolicyWithoutEndToEnd || t == TypePolicyWithEndToEnd
}

// IsProvider reports whether t is a model provider.
func (t ComponentType) IsProvider() bool {
	return t == TypeModelProvider
}
