package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/mesh-intelligence/vento/pkg/types"
)

type userDoc struct {
	ID          bson.ObjectID `bson:"_id,omitempty"`
	Username    string        `bson:"username"`
	UsernameKey string        `bson:"usernameKey"`
	Password    string        `bson:"password"`
	CreatedAt   string        `bson:"createdAt"`
	IsAdmin     bool          `bson:"isAdmin"`
}

func (d userDoc) user() types.User {
	return types.User{Username: d.Username, Password: d.Password, CreatedAt: d.CreatedAt, IsAdmin: d.IsAdmin}
}

type userStore struct {
	b *Backend
}

func (s *userStore) Exists(ctx context.Context, username string) (bool, error) {
	release, err := s.b.acquire()
	if err != nil {
		return false, err
	}
	defer release()

	n, err := s.b.usersColl().CountDocuments(ctx, bson.M{"usernameKey": types.UsernameKey(username)})
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	return n > 0, nil
}

func (s *userStore) Get(ctx context.Context, username string) (types.User, error) {
	release, err := s.b.acquire()
	if err != nil {
		return types.User{}, err
	}
	defer release()

	var doc userDoc
	err = s.b.usersColl().FindOne(ctx, bson.M{"usernameKey": types.UsernameKey(username)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return types.User{}, types.ErrUserNotFound
	}
	if err != nil {
		return types.User{}, fmt.Errorf("find user: %w", err)
	}
	return doc.user(), nil
}

// List returns users ordered by insertion; ObjectIDs are time-ordered.
func (s *userStore) List(ctx context.Context) ([]types.User, error) {
	release, err := s.b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	cur, err := s.b.usersColl().Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	defer cur.Close(ctx)

	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	users := make([]types.User, len(docs))
	for i, d := range docs {
		users[i] = d.user()
	}
	return users, nil
}

func (s *userStore) Add(ctx context.Context, u types.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	release, err := s.b.acquire()
	if err != nil {
		return err
	}
	defer release()

	_, err = s.b.usersColl().InsertOne(ctx, userDoc{
		Username:    u.Username,
		UsernameKey: u.Key(),
		Password:    u.Password,
		CreatedAt:   u.CreatedAt,
		IsAdmin:     u.IsAdmin,
	})
	if mongo.IsDuplicateKeyError(err) {
		return types.ErrUsernameTaken
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *userStore) Update(ctx context.Context, oldUsername string, u types.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	release, err := s.b.acquire()
	if err != nil {
		return err
	}
	defer release()

	res, err := s.b.usersColl().UpdateOne(ctx,
		bson.M{"usernameKey": types.UsernameKey(oldUsername)},
		bson.M{"$set": bson.M{
			"username":    u.Username,
			"usernameKey": u.Key(),
			"password":    u.Password,
			"createdAt":   u.CreatedAt,
			"isAdmin":     u.IsAdmin,
		}})
	if mongo.IsDuplicateKeyError(err) {
		return types.ErrUsernameTaken
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return types.ErrUserNotFound
	}
	return nil
}

func (s *userStore) Delete(ctx context.Context, username string) error {
	release, err := s.b.acquire()
	if err != nil {
		return err
	}
	defer release()

	res, err := s.b.usersColl().DeleteOne(ctx, bson.M{"usernameKey": types.UsernameKey(username)})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return types.ErrUserNotFound
	}
	return nil
}
