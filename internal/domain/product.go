package domain

import "time"

type Category struct {
	ID     string `bson:"_id" json:"id" yaml:"id"`
	Name   string `bson:"name" json:"name" yaml:"name"`
	Slug   string `bson:"slug" json:"slug" yaml:"slug"`
	Active bool   `bson:"active" json:"active" yaml:"active"`
}

type Product struct {
	ID           string    `bson:"_id" json:"id" yaml:"id"`
	Name         string    `bson:"name" json:"name" yaml:"name"`
	Description  string    `bson:"description" json:"description" yaml:"description"`
	CategoryID   string    `bson:"category_id" json:"categoryId" yaml:"category_id"`
	RegularPrice float64   `bson:"regular_price" json:"regularPrice" yaml:"regular_price"`
	SalePrice    float64   `bson:"sale_price,omitempty" json:"salePrice,omitempty" yaml:"sale_price"`
	WeightGrams  int       `bson:"weight_grams" json:"weightGrams" yaml:"weight_grams"`
	ImageURL     string    `bson:"image_url" json:"imageUrl" yaml:"image_url"`
	Active       bool      `bson:"active" json:"active" yaml:"active"`
	CreatedAt    time.Time `bson:"created_at" json:"createdAt" yaml:"-"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updatedAt" yaml:"-"`
}

// UnitPrice is the price a customer pays for one unit before membership and promotions.
func (p Product) UnitPrice() float64 {
	if p.SalePrice > 0 && p.SalePrice < p.RegularPrice {
		return p.SalePrice
	}
	return p.RegularPrice
}
