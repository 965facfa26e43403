package domain

import "time"

// Favorite marks a product as favorited by a user. At most one exists per
// (UserID, ProductID).
type Favorite struct {
	UserID    string    `bson:"user_id" json:"userId"`
	ProductID string    `bson:"product_id" json:"productId"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}
