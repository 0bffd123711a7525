// internal/domain/card/repository.go
package card

import "context"

type Repository interface {
	// FindCustomerCard returns the card joined with its template and business.
	FindCustomerCard(ctx context.Context, id string) (*CustomerCard, error)
	FindTemplate(ctx context.Context, id string) (*Template, *Business, error)
	CreateCustomerCard(ctx context.Context, cc *CustomerCard) error

	// IncrementProgress adds delta to the progress column of the card type as
	// long as the result stays <= limit, and returns the new value.
	IncrementProgress(ctx context.Context, id string, cardType CardType, delta, limit int) (int, error)
}
