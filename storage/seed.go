package storage

import (
	"context"
	"fmt"

	"go-storefront/models"
)

// SampleProducts is the starter catalog loaded into an empty store.
func SampleProducts() []models.Product {
	return []models.Product{
		{
			Title:       "Vintage Sunset Polaroid",
			Description: "A beautiful vintage polaroid capturing the perfect sunset moment. Warm tones and nostalgic vibes.",
			Price:       models.MustMoney("24.99"),
			ImageURL:    "https://images.unsplash.com/photo-1526047932273-341f2a7631f9?w=400&h=400&fit=crop",
			Tags:        []string{"vintage", "sunset", "warm", "retro"},
			Stock:       15,
			Category:    models.DefaultCategory,
			Featured:    true,
		},
		{
			Title:       "Ocean Wave Memories",
			Description: "Capturing the serene beauty of ocean waves. Perfect for beach lovers and nature enthusiasts.",
			Price:       models.MustMoney("29.99"),
			ImageURL:    "https://images.unsplash.com/photo-1544551763-46a013bb70d5?w=400&h=400&fit=crop",
			Tags:        []string{"ocean", "waves", "blue", "nature"},
			Stock:       20,
			Category:    models.DefaultCategory,
			Featured:    true,
		},
		{
			Title:       "City Lights Night",
			Description: "Urban nightlife captured in a single frame. Neon lights and city energy.",
			Price:       models.MustMoney("27.99"),
			ImageURL:    "https://images.unsplash.com/photo-1496442226666-8d4d0e62e6e9?w=400&h=400&fit=crop",
			Tags:        []string{"city", "night", "neon", "urban"},
			Stock:       12,
			Category:    models.DefaultCategory,
		},
		{
			Title:       "Forest Path Discovery",
			Description: "A mysterious forest path beckoning adventure. Green tones and natural beauty.",
			Price:       models.MustMoney("22.99"),
			ImageURL:    "https://images.unsplash.com/photo-1441974231531-c6227db76b6e?w=400&h=400&fit=crop",
			Tags:        []string{"forest", "nature", "green", "adventure"},
			Stock:       18,
			Category:    models.DefaultCategory,
		},
		{
			Title:       "Mountain Peak Serenity",
			Description: "Breathtaking mountain views captured at the perfect moment. Majesty and tranquility.",
			Price:       models.MustMoney("32.99"),
			ImageURL:    "https://images.unsplash.com/photo-1506905925346-21bda4d32df4?w=400&h=400&fit=crop",
			Tags:        []string{"mountain", "peaks", "nature", "serenity"},
			Stock:       8,
			Category:    models.DefaultCategory,
			Featured:    true,
		},
		{
			Title:       "Cozy Coffee Corner",
			Description: "Perfect morning coffee moment. Warm, cozy, and inviting atmosphere.",
			Price:       models.MustMoney("19.99"),
			ImageURL:    "https://images.unsplash.com/photo-1495474472287-4d71bcdd2085?w=400&h=400&fit=crop",
			Tags:        []string{"coffee", "cozy", "morning", "warm"},
			Stock:       25,
			Category:    models.DefaultCategory,
		},
	}
}

// SeedProducts loads SampleProducts when the catalog is empty and reports
// how many products were created.
func SeedProducts(ctx context.Context, store ProductStore) (int, error) {
	existing, err := store.GetProducts(ctx)
	if err != nil {
		return 0, fmt.Errorf("list products: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	samples := SampleProducts()
	for i := range samples {
		if err := store.CreateProduct(ctx, &samples[i]); err != nil {
			return i, fmt.Errorf("seed product %q: %w", samples[i].Title, err)
		}
	}
	return len(samples), nil
}
