// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package capability

import (
	"sort"
	"strings"
)

type supportMode int

const (
	supportAll supportMode = iota
	supportOnly
	supportNone
)

// LanguageSupport declares which run languages a component accepts.
//
// It has exactly three states: all languages, only a listed set, or no
// language at all. Each state can carry an exclusion set added with
// Except. The zero value is AllLanguages().
type LanguageSupport struct {
	mode     supportMode
	only     map[string]bool
	excluded map[string]bool
}

// AllLanguages accepts every language.
func AllLanguages() LanguageSupport {
	return LanguageSupport{mode: supportAll}
}

// OnlyLanguages accepts only the listed languages. An empty list accepts
// nothing, the same as NoLanguages.
func OnlyLanguages(langs ...string) LanguageSupport {
	if len(langs) == 0 {
		return NoLanguages()
	}
	return LanguageSupport{mode: supportOnly, only: languageSet(langs)}
}

// NoLanguages accepts no language. Used by components that must never run
// in a language-specific pipeline.
func NoLanguages() LanguageSupport {
	return LanguageSupport{mode: supportNone}
}

// FromLists builds a LanguageSupport from supported/not-supported lists.
// A nil supported list means every language.
func FromLists(supported, notSupported []string) LanguageSupport {
	ls := AllLanguages()
	if supported != nil {
		ls = OnlyLanguages(supported...)
	}
	return ls.Except(notSupported...)
}

// Except returns a copy of ls that additionally rejects langs.
func (ls LanguageSupport) Except(langs ...string) LanguageSupport {
	if len(langs) == 0 {
		return ls
	}
	out := LanguageSupport{mode: ls.mode, only: ls.only, excluded: make(map[string]bool, len(ls.excluded)+len(langs))}
	for l := range ls.excluded {
		out.excluded[l] = true
	}
	for l := range languageSet(langs) {
		out.excluded[l] = true
	}
	return out
}

// Allows reports whether lang is accepted.
func (ls LanguageSupport) Allows(lang string) bool {
	lang = normalizeLanguage(lang)
	if ls.excluded[lang] {
		return false
	}
	switch ls.mode {
	case supportAll:
		return true
	case supportOnly:
		return ls.only[lang]
	default:
		return false
	}
}

// Supported returns the accepted languages in order, or nil for AllLanguages.
func (ls LanguageSupport) Supported() []string {
	switch ls.mode {
	case supportOnly:
		return sortedKeys(ls.only)
	case supportNone:
		return []string{}
	default:
		return nil
	}
}

// Excluded returns the rejected languages in order.
func (ls LanguageSupport) Excluded() []string {
	return sortedKeys(ls.excluded)
}

// String describes ls, for example "only [de en] except [en]".
func (ls LanguageSupport) String() string {
	var b strings.Builder
	switch ls.mode {
	case supportAll:
		b.WriteString("all")
	case supportOnly:
		b.WriteString("only [" + strings.Join(sortedKeys(ls.only), " ") + "]")
	default:
		b.WriteString("none")
	}
	if len(ls.excluded) > 0 {
		b.WriteString(" except [" + strings.Join(sortedKeys(ls.excluded), " ") + "]")
	}
	return b.String()
}

func languageSet(langs []string) map[string]bool {
	set := make(map[string]bool, len(langs))
	for _, l := range langs {
		if l = normalizeLanguage(l); l != "" {
			set[l] = true
		}
	}
	return set
}

func normalizeLanguage(lang string) string {
	return strings.ToLower(strings.TrimSpace(lang))
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
