package models

// CartItem представляет позицию корзины.
// Payload операций над EntityCartItem.
type CartItem struct {
	ProductID int64 `json:"product_id"` // ProductID идентификатор товара в каталоге
	Quantity  int   `json:"quantity"`   // Quantity количество, всегда > 0
}

// Order представляет заказ (Venta), оформленный из позиций корзины
type Order struct {
	Items   []CartItem `json:"items"`
	Comment string     `json:"comment,omitempty"` // комментарий покупателя
}

// Review представляет отзыв о товаре
type Review struct {
	Comment   string `json:"comment,omitempty"`
	ProductID int64  `json:"product_id"`
	Rating    int    `json:"rating"` // Rating оценка от 1 до 5
}
