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
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// KnowledgeSchema returns the class definition for knowledge snippets.
func KnowledgeSchema() *models.Class {
	return &models.Class{
		Class:       KnowledgeClassName,
		Description: "A knowledge snippet retrievable by the agent loop.",
		Vectorizer:  "text2vec-transformers",
		Properties: []*models.Property{
			{
				Name:         "title",
				DataType:     []string{"text"},
				Description:  "Short title of the snippet.",
				Tokenization: "word",
			},
			{
				Name:         "text",
				DataType:     []string{"text"},
				Description:  "The snippet body.",
				Tokenization: "word",
			},
		},
	}
}

// EnsureKnowledgeSchema creates the knowledge class if it does not exist.
//
// Description:
//
//	Idempotent: an already-present class is left untouched. Call once
//	at startup before serving retrieval traffic.
func EnsureKnowledgeSchema(ctx context.Context, client *weaviate.Client) error {
	if client == nil {
		return fmt.Errorf("client must not be nil")
	}

	exists, err := client.Schema().ClassExistenceChecker().
		WithClassName(KnowledgeClassName).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("check class %s: %w", KnowledgeClassName, err)
	}
	if exists {
		return nil
	}

	if err := client.Schema().ClassCreator().
		WithClass(KnowledgeSchema()).
		Do(ctx); err != nil {
		return fmt.Errorf("create class %s: %w", KnowledgeClassName, err)
	}
	slog.Info("Created knowledge class", slog.String("class", KnowledgeClassName))
	return nil
}
