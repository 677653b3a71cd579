package mongo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/mesh-intelligence/vento/pkg/types"
)

type productDoc struct {
	Username    string    `bson:"username"`
	UsernameKey string    `bson:"usernameKey"`
	ID          int64     `bson:"id"`
	Name        string    `bson:"productName"`
	Price       float64   `bson:"price"`
	Quantity    int64     `bson:"quantity"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

func (d productDoc) product() types.Product {
	return types.Product{ID: d.ID, Name: d.Name, Price: d.Price, Quantity: d.Quantity}
}

type productStore struct {
	b *Backend
}

func byID(username string, id int64) bson.M {
	return bson.M{"usernameKey": types.UsernameKey(username), "id": id}
}

func (s *productStore) Exists(ctx context.Context, username string, id int64) (bool, error) {
	release, err := s.b.acquire()
	if err != nil {
		return false, err
	}
	defer release()

	n, err := s.b.productsColl().CountDocuments(ctx, byID(username, id), options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count products: %w", err)
	}
	return n > 0, nil
}

func (s *productStore) Get(ctx context.Context, username string, id int64) (types.Product, error) {
	release, err := s.b.acquire()
	if err != nil {
		return types.Product{}, err
	}
	defer release()
	return s.get(ctx, username, id)
}

func (s *productStore) get(ctx context.Context, username string, id int64) (types.Product, error) {
	var doc productDoc
	err := s.b.productsColl().FindOne(ctx, byID(username, id)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return types.Product{}, types.ErrNotFound
	}
	if err != nil {
		return types.Product{}, fmt.Errorf("find product: %w", err)
	}
	return doc.product(), nil
}

func (s *productStore) List(ctx context.Context, username string) ([]types.Product, error) {
	release, err := s.b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	opts := options.Find().SetSort(bson.D{{Key: "id", Value: 1}})
	cur, err := s.b.productsColl().Find(ctx, bson.M{"usernameKey": types.UsernameKey(username)}, opts)
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	defer cur.Close(ctx)

	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	products := make([]types.Product, len(docs))
	for i, d := range docs {
		products[i] = d.product()
	}
	return products, nil
}

func (s *productStore) Add(ctx context.Context, username string, p types.Product) error {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return err
	}
	release, err := s.b.acquire()
	if err != nil {
		return err
	}
	defer release()

	now := time.Now().UTC()
	_, err = s.b.productsColl().InsertOne(ctx, productDoc{
		Username:    username,
		UsernameKey: types.UsernameKey(username),
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price,
		Quantity:    p.Quantity,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if mongo.IsDuplicateKeyError(err) {
		return types.ErrDuplicateID
	}
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (s *productStore) Update(ctx context.Context, username string, p types.Product) error {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return err
	}
	release, err := s.b.acquire()
	if err != nil {
		return err
	}
	defer release()

	res, err := s.b.productsColl().UpdateOne(ctx, byID(username, p.ID), bson.M{"$set": bson.M{
		"productName": p.Name,
		"price":       p.Price,
		"quantity":    p.Quantity,
		"updatedAt":   time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if res.MatchedCount == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (s *productStore) Delete(ctx context.Context, username string, id int64) error {
	release, err := s.b.acquire()
	if err != nil {
		return err
	}
	defer release()

	res, err := s.b.productsColl().DeleteOne(ctx, byID(username, id))
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if res.DeletedCount == 0 {
		return types.ErrNotFound
	}
	return nil
}

// AdjustQuantity applies delta with a guarded $inc so the quantity never
// drops below zero or overflows.
func (s *productStore) AdjustQuantity(ctx context.Context, username string, id int64, delta int64) (types.Product, error) {
	release, err := s.b.acquire()
	if err != nil {
		return types.Product{}, err
	}
	defer release()

	filter := byID(username, id)
	switch {
	case delta < 0 && delta != math.MinInt64:
		filter["quantity"] = bson.M{"$gte": -delta}
	case delta > 0:
		filter["quantity"] = bson.M{"$lte": math.MaxInt64 - delta}
	}

	var doc productDoc
	if delta != math.MinInt64 {
		err = s.b.productsColl().FindOneAndUpdate(ctx, filter,
			bson.M{
				"$inc": bson.M{"quantity": delta},
				"$set": bson.M{"updatedAt": time.Now().UTC()},
			},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&doc)
		if err == nil {
			return doc.product(), nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return types.Product{}, fmt.Errorf("adjust quantity: %w", err)
		}
	}

	cur, err := s.get(ctx, username, id)
	if err != nil {
		return types.Product{}, err
	}
	if _, err := cur.Adjusted(delta); err != nil {
		return cur, err
	}
	return cur, types.ErrInsufficientStock
}

func (s *productStore) Count(ctx context.Context, username string) (int, error) {
	release, err := s.b.acquire()
	if err != nil {
		return 0, err
	}
	defer release()

	n, err := s.b.productsColl().CountDocuments(ctx, bson.M{"usernameKey": types.UsernameKey(username)})
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return int(n), nil
}

func (s *productStore) DeleteAllForUser(ctx context.Context, username string) error {
	release, err := s.b.acquire()
	if err != nil {
		return err
	}
	defer release()

	if _, err := s.b.productsColl().DeleteMany(ctx, bson.M{"usernameKey": types.UsernameKey(username)}); err != nil {
		return fmt.Errorf("delete products: %w", err)
	}
	return nil
}

func (s *productStore) RenameOwner(ctx context.Context, from, to string) error {
	release, err := s.b.acquire()
	if err != nil {
		return err
	}
	defer release()

	src, dst := types.UsernameKey(from), types.UsernameKey(to)
	coll := s.b.productsColl()
	if src != dst {
		moving, err := coll.CountDocuments(ctx, bson.M{"usernameKey": src})
		if err != nil {
			return fmt.Errorf("count products: %w", err)
		}
		if moving == 0 {
			return nil
		}
		occupied, err := coll.CountDocuments(ctx, bson.M{"usernameKey": dst})
		if err != nil {
			return fmt.Errorf("count products: %w", err)
		}
		if occupied > 0 {
			return fmt.Errorf("%w: %s already owns products", types.ErrUsernameTaken, to)
		}
	}
	_, err = coll.UpdateMany(ctx, bson.M{"usernameKey": src},
		bson.M{"$set": bson.M{"usernameKey": dst, "username": to}})
	if err != nil {
		return fmt.Errorf("rename owner: %w", err)
	}
	return nil
}
