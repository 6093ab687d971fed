package vector

import (
	"context"
	"log/slog"

	"github.com/weaviate/weaviate/entities/models"
)

// ClassName is the Weaviate class holding indexed news articles.
const ClassName = "NewsArticle"

// SchemaClient defines the Weaviate schema operations used by EnsureSchema.
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
}

// EnsureSchema creates the article class if it is absent and backfills any
// missing properties on an existing class. Idempotent: repeat calls are no-ops
// and never fail on "already exists". dimension is the embedding width the
// collection was provisioned for; Weaviate itself takes the width from the
// first stored vector, so it is recorded for the logs only.
func EnsureSchema(ctx context.Context, client SchemaClient, dimension int) error {
	exists, err := client.ClassExists(ctx, ClassName)
	if err != nil {
		return err
	}

	properties := []*models.Property{
		{
			Name:     "title",
			DataType: []string{"text"},
		},
		{
			Name:     "url",
			DataType: []string{"string"}, // identity key, exact match
		},
		{
			Name:     "source",
			DataType: []string{"string"},
		},
		{
			Name:     "publishedAt",
			DataType: []string{"date"},
		},
		{
			Name:     "content",
			DataType: []string{"text"},
		},
		{
			Name:     "summary",
			DataType: []string{"text"},
		},
		{
			Name:     "identity",
			DataType: []string{"int"}, // 63-bit hash of the url
		},
	}

	if !exists {
		class := &models.Class{
			Class:       ClassName,
			Description: "An indexed news article",
			Vectorizer:  "none",
			VectorIndexConfig: map[string]interface{}{
				"distance": "cosine",
			},
			Properties: properties,
		}
		if err := client.CreateClass(ctx, class); err != nil {
			return err
		}
		slog.InfoContext(ctx, "created article class", "class", ClassName, "dimension", dimension)
		return nil
	}

	// Class exists, backfill missing properties.
	class, err := client.GetClass(ctx, ClassName)
	if err != nil {
		return err
	}

	existing := make(map[string]bool)
	for _, p := range class.Properties {
		existing[p.Name] = true
	}

	for _, p := range properties {
		if !existing[p.Name] {
			if err := client.AddProperty(ctx, ClassName, p); err != nil {
				return err
			}
		}
	}

	return nil
}
