package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vali024/valix-shop/internal/domain"
)

type MongoAddressRepository struct {
	collection *mongo.Collection
}

func NewMongoAddressRepository(db *mongo.Database) *MongoAddressRepository {
	return &MongoAddressRepository{
		collection: db.Collection("addresses"),
	}
}

func (m *MongoAddressRepository) GetAddresses(ctx context.Context, userID string) (*domain.AddressBook, error) {
	var book domain.AddressBook

	err := m.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&book)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &domain.AddressBook{UserID: userID, Addresses: []domain.Address{}}, nil
		}
		return nil, fmt.Errorf("failed to get addresses: %w", err)
	}
	if book.Addresses == nil {
		book.Addresses = []domain.Address{}
	}

	return &book, nil
}

func (m *MongoAddressRepository) SaveAddresses(ctx context.Context, book *domain.AddressBook) error {
	addresses := book.Addresses
	if addresses == nil {
		addresses = []domain.Address{}
	}
	next := book.Version + 1
	now := time.Now().UTC()

	if book.Version == 0 {
		_, err := m.collection.InsertOne(ctx, bson.M{
			"user_id":    book.UserID,
			"addresses":  addresses,
			"version":    next,
			"updated_at": now,
		})
		if mongo.IsDuplicateKeyError(err) {
			return ErrVersionConflict
		}
		if err != nil {
			return fmt.Errorf("failed to insert addresses: %w", err)
		}
		book.Version = next
		return nil
	}

	filter := bson.M{"user_id": book.UserID, "version": book.Version}
	update := bson.M{"$set": bson.M{
		"addresses":  addresses,
		"version":    next,
		"updated_at": now,
	}}

	res, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update addresses: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrVersionConflict
	}
	book.Version = next
	return nil
}

func (m *MongoAddressRepository) CreateIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
