package validation

import (
	"fmt"
	"unicode/utf8"
)

const (
	// MinRating минимальная оценка отзыва
	MinRating = 1
	// MaxRating максимальная оценка отзыва
	MaxRating = 5
)

// ValidateEntityID проверяет идентификатор сущности.
// Формат id принадлежит серверу, клиент требует только непустую UTF-8 строку.
func ValidateEntityID(id string) error {
	if id == "" {
		return fmt.Errorf("entity id cannot be empty")
	}

	if !utf8.ValidString(id) {
		return fmt.Errorf("entity id must be valid UTF-8")
	}

	return nil
}

// ValidateQuantity проверяет количество товара в корзине
func ValidateQuantity(quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", quantity)
	}
	return nil
}

// ValidateRating проверяет оценку отзыва
func ValidateRating(rating int) error {
	if rating < MinRating || rating > MaxRating {
		return fmt.Errorf("rating must be between %d and %d, got %d", MinRating, MaxRating, rating)
	}
	return nil
}
