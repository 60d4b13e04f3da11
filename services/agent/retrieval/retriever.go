// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package retrieval provides the knowledge lookup boundary for the
// agent loop.
//
// Retrieval is best-effort and may legitimately return nothing; the
// control plane treats an empty result as a signal, not an error.
package retrieval

import (
	"context"
	"sort"
	"strings"
)

// Document is one retrievable knowledge snippet.
type Document struct {
	// Title identifies the document in logs and citations.
	Title string `json:"title"`

	// Text is the snippet body appended to run knowledge.
	Text string `json:"text"`
}

// Retriever looks up documents relevant to a query.
type Retriever interface {
	// Retrieve returns up to k documents ranked by relevance. An empty
	// slice means nothing relevant was found; it is not an error.
	Retrieve(ctx context.Context, query string, k int) ([]Document, error)
}

// CorpusRetriever is an in-memory keyword-overlap retriever.
//
// Description:
//
//	Scoring is the count of distinct query words appearing in the
//	document text, case-insensitive. Documents with zero overlap are
//	never returned. Ties break on corpus order, so retrieval is
//	deterministic for a fixed corpus.
//
// Thread Safety: Safe for concurrent use; the corpus is immutable
// after construction.
type CorpusRetriever struct {
	corpus []Document
}

// NewCorpusRetriever creates a retriever over the given documents.
func NewCorpusRetriever(corpus []Document) *CorpusRetriever {
	docs := make([]Document, len(corpus))
	copy(docs, corpus)
	return &CorpusRetriever{corpus: docs}
}

// DefaultCorpus returns the built-in demo corpus.
func DefaultCorpus() []Document {
	return []Document{
		{
			Title: "Tool budgets",
			Text:  "Every tool call is charged against a per-run call budget and a cumulative latency budget. When either budget is exhausted the agent stops calling tools and answers with what it has.",
		},
		{
			Title: "Retrieval rounds",
			Text:  "Knowledge retrieval runs in bounded rounds. Each round appends the best matching snippets to the run's knowledge, and the retrieve cap limits how many rounds a single question may spend.",
		},
		{
			Title: "Risk policy",
			Text:  "Tools declare a risk level of low, medium, or high. The run's risk policy filters the catalog before selection, so a high risk tool is never dispatched under a medium risk ceiling.",
		},
	}
}

// Retrieve implements the Retriever interface.
func (c *CorpusRetriever) Retrieve(ctx context.Context, query string, k int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}

	words := queryWords(query)
	if len(words) == 0 {
		return nil, nil
	}

	type scored struct {
		doc   Document
		score int
		order int
	}
	var hits []scored
	for i, doc := range c.corpus {
		lower := strings.ToLower(doc.Title + " " + doc.Text)
		score := 0
		for word := range words {
			if strings.Contains(lower, word) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{doc: doc, score: score, order: i})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].order < hits[j].order
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	docs := make([]Document, len(hits))
	for i, h := range hits {
		docs[i] = h.doc
	}
	return docs, nil
}

// queryWords lowercases and splits a query, dropping one-letter tokens.
func queryWords(query string) map[string]bool {
	words := make(map[string]bool)
	for _, field := range strings.Fields(strings.ToLower(query)) {
		field = strings.Trim(field, ".,!?;:\"'()")
		if len(field) > 1 {
			words[field] = true
		}
	}
	return words
}
