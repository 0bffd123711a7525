// internal/domain/card/dto.go
package card

type AddStampsRequest struct {
	Count int `json:"count" binding:"omitempty,min=1,max=50"`
}

type UseSessionsRequest struct {
	Count int `json:"count" binding:"omitempty,min=1,max=50"`
}

type EnrollRequest struct {
	TemplateID   string `json:"template_id" binding:"required"`
	CustomerID   string `json:"customer_id" binding:"required"`
	CustomerName string `json:"customer_name" binding:"max=255"`
}
