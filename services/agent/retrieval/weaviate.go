// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
)

// KnowledgeClassName is the Weaviate class holding knowledge snippets.
const KnowledgeClassName = "AgentKnowledge"

// WeaviateRetriever retrieves knowledge snippets via semantic search.
//
// Description:
//
//	Queries the AgentKnowledge class with nearText semantic search.
//	Used when a vector store is deployed alongside the agent; the
//	in-memory CorpusRetriever remains the default for offline runs.
//
// Thread Safety: Safe for concurrent use.
type WeaviateRetriever struct {
	client *weaviate.Client
}

// NewWeaviateRetriever creates a retriever over a Weaviate client.
//
// Outputs:
//
//	*WeaviateRetriever - The configured retriever.
//	error - Non-nil if client is nil.
func NewWeaviateRetriever(client *weaviate.Client) (*WeaviateRetriever, error) {
	if client == nil {
		return nil, errors.New("client must not be nil")
	}
	return &WeaviateRetriever{client: client}, nil
}

// Retrieve implements the Retriever interface.
func (w *WeaviateRetriever) Retrieve(ctx context.Context, query string, k int) ([]Document, error) {
	if query == "" || k <= 0 {
		return nil, nil
	}

	nearText := w.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query})

	fields := []graphql.Field{
		{Name: "title"},
		{Name: "text"},
		{Name: "_additional { certainty }"},
	}

	result, err := w.client.GraphQL().Get().
		WithClassName(KnowledgeClassName).
		WithFields(fields...).
		WithNearText(nearText).
		WithLimit(k).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("search error: %s", result.Errors[0].Message)
	}

	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return nil, nil
	}
	objects, ok := data[KnowledgeClassName].([]interface{})
	if !ok {
		return nil, nil
	}

	docs := make([]Document, 0, len(objects))
	for _, obj := range objects {
		m, ok := obj.(map[string]interface{})
		if !ok {
			continue // skip malformed objects
		}
		doc := Document{
			Title: getString(m, "title"),
			Text:  getString(m, "text"),
		}
		if doc.Text == "" {
			continue
		}
		docs = append(docs, doc)
	}

	slog.Debug("Retrieved knowledge from Weaviate",
		slog.String("query", query),
		slog.Int("count", len(docs)))
	return docs, nil
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
