package persistence

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vidfriends/shorts/internal/models"
)

const (
	usersCollection     = "users"
	shortsCollection    = "shorts"
	followingCollection = "following"
	likesCollection     = "likes"
)

// Mongo provides document-store persistence. Edge documents are keyed by the
// identifier derived from their endpoints, so the primary key enforces
// at-most-one edge per pair. The like counter is adjusted with $inc after the
// edge write; the two writes are not wrapped in a multi-document transaction.
type Mongo struct {
	client    *mongo.Client
	users     *mongo.Collection
	shorts    *mongo.Collection
	following *mongo.Collection
	likes     *mongo.Collection
}

// ConnectMongo dials uri and prepares the collections in database.
func ConnectMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	m := NewMongo(client, database)
	if err := m.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return m, nil
}

// NewMongo wraps an existing client.
func NewMongo(client *mongo.Client, database string) *Mongo {
	db := client.Database(database)
	return &Mongo{
		client:    client,
		users:     db.Collection(usersCollection),
		shorts:    db.Collection(shortsCollection),
		following: db.Collection(followingCollection),
		likes:     db.Collection(likesCollection),
	}
}

// EnsureIndexes creates the secondary indexes used by the list queries.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	indexes := map[*mongo.Collection][]mongo.IndexModel{
		m.shorts: {
			{Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "timestamp", Value: -1}}},
		},
		m.following: {
			{Keys: bson.D{{Key: "follower", Value: 1}, {Key: "followee", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "followee", Value: 1}}},
		},
		m.likes: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "shortId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "shortId", Value: 1}}},
			{Keys: bson.D{{Key: "ownerId", Value: 1}}},
		},
	}
	for coll, specs := range indexes {
		if _, err := coll.Indexes().CreateMany(ctx, specs); err != nil {
			return fmt.Errorf("create %s indexes: %w", coll.Name(), err)
		}
	}
	return nil
}

// CreateUser persists a new user document.
func (m *Mongo) CreateUser(ctx context.Context, user models.User) error {
	if _, err := m.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser fetches a user by id.
func (m *Mongo) GetUser(ctx context.Context, userID string) (models.User, error) {
	var user models.User
	if err := m.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, models.ErrNotFound
		}
		return models.User{}, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// UpdateUser replaces a user document.
func (m *Mongo) UpdateUser(ctx context.Context, user models.User) error {
	res, err := m.users.ReplaceOne(ctx, bson.M{"_id": user.ID}, user)
	if err != nil {
		return fmt.Errorf("replace user: %w", err)
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteUser removes the user document only.
func (m *Mongo) DeleteUser(ctx context.Context, userID string) error {
	res, err := m.users.DeleteOne(ctx, bson.M{"_id": userID})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// SearchUsers matches pattern against user ids, ignoring case.
func (m *Mongo) SearchUsers(ctx context.Context, pattern string) ([]models.User, error) {
	filter := bson.M{"_id": primitive.Regex{Pattern: regexp.QuoteMeta(pattern), Options: "i"}}
	cur, err := m.users.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	users := []models.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

// CreateShort persists a new short with a zero like counter.
func (m *Mongo) CreateShort(ctx context.Context, short models.Short) error {
	short.TotalLikes = 0
	if _, err := m.shorts.InsertOne(ctx, short); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.ErrConflict
		}
		return fmt.Errorf("insert short: %w", err)
	}
	return nil
}

// GetShort fetches a short by id.
func (m *Mongo) GetShort(ctx context.Context, shortID string) (models.Short, error) {
	var short models.Short
	if err := m.shorts.FindOne(ctx, bson.M{"_id": shortID}).Decode(&short); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Short{}, models.ErrNotFound
		}
		return models.Short{}, fmt.Errorf("find short: %w", err)
	}
	return short, nil
}

// DeleteShort removes the short's like edges, then the short.
func (m *Mongo) DeleteShort(ctx context.Context, shortID string) error {
	if _, err := m.shorts.FindOne(ctx, bson.M{"_id": shortID}).Raw(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.ErrNotFound
		}
		return fmt.Errorf("find short: %w", err)
	}
	if _, err := m.likes.DeleteMany(ctx, bson.M{"shortId": shortID}); err != nil {
		return fmt.Errorf("delete short likes: %w", err)
	}
	res, err := m.shorts.DeleteOne(ctx, bson.M{"_id": shortID})
	if err != nil {
		return fmt.Errorf("delete short: %w", err)
	}
	if res.DeletedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ShortsByOwner lists the owner's shorts, newest first.
func (m *Mongo) ShortsByOwner(ctx context.Context, ownerID string) ([]models.Short, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: 1}})
	cur, err := m.shorts.Find(ctx, bson.M{"ownerId": ownerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find shorts: %w", err)
	}
	shorts := []models.Short{}
	if err := cur.All(ctx, &shorts); err != nil {
		return nil, fmt.Errorf("decode shorts: %w", err)
	}
	return shorts, nil
}

// Follow inserts a follow edge if it is absent.
func (m *Mongo) Follow(ctx context.Context, follower, followee string) (bool, error) {
	if _, err := m.following.InsertOne(ctx, models.NewFollowing(follower, followee)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert following: %w", err)
	}
	return true, nil
}

// Unfollow deletes a follow edge if it is present.
func (m *Mongo) Unfollow(ctx context.Context, follower, followee string) (bool, error) {
	res, err := m.following.DeleteOne(ctx, bson.M{"_id": models.FollowingID(follower, followee)})
	if err != nil {
		return false, fmt.Errorf("delete following: %w", err)
	}
	return res.DeletedCount > 0, nil
}

// Followers lists the users following userID.
func (m *Mongo) Followers(ctx context.Context, userID string) ([]string, error) {
	edges, err := m.findFollowing(ctx, bson.M{"followee": userID}, "follower")
	if err != nil {
		return nil, fmt.Errorf("find followers: %w", err)
	}
	ids := make([]string, 0, len(edges))
	for _, edge := range edges {
		ids = append(ids, edge.Follower)
	}
	return ids, nil
}

// Followees lists the users userID follows.
func (m *Mongo) Followees(ctx context.Context, userID string) ([]string, error) {
	edges, err := m.findFollowing(ctx, bson.M{"follower": userID}, "followee")
	if err != nil {
		return nil, fmt.Errorf("find followees: %w", err)
	}
	ids := make([]string, 0, len(edges))
	for _, edge := range edges {
		ids = append(ids, edge.Followee)
	}
	return ids, nil
}

// Like inserts the edge, then increments the counter with $inc. If the short
// has vanished in between, the edge is removed again.
func (m *Mongo) Like(ctx context.Context, like models.Like) (bool, error) {
	like.ID = models.LikeID(like.UserID, like.ShortID)
	if _, err := m.likes.InsertOne(ctx, like); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert like: %w", err)
	}

	res, err := m.shorts.UpdateOne(ctx, bson.M{"_id": like.ShortID}, bson.M{"$inc": bson.M{"totalLikes": 1}})
	if err != nil {
		return false, fmt.Errorf("increment likes: %w", err)
	}
	if res.MatchedCount == 0 {
		if _, err := m.likes.DeleteOne(ctx, bson.M{"_id": like.ID}); err != nil {
			return false, fmt.Errorf("undo like: %w", err)
		}
		return false, models.ErrNotFound
	}
	return true, nil
}

// Unlike deletes the edge, then decrements the counter with $inc.
func (m *Mongo) Unlike(ctx context.Context, userID, shortID string) (bool, error) {
	res, err := m.likes.DeleteOne(ctx, bson.M{"_id": models.LikeID(userID, shortID)})
	if err != nil {
		return false, fmt.Errorf("delete like: %w", err)
	}
	if res.DeletedCount == 0 {
		return false, nil
	}
	if _, err := m.shorts.UpdateOne(ctx, bson.M{"_id": shortID}, bson.M{"$inc": bson.M{"totalLikes": -1}}); err != nil {
		return false, fmt.Errorf("decrement likes: %w", err)
	}
	return true, nil
}

// Likes lists the users who liked shortID.
func (m *Mongo) Likes(ctx context.Context, shortID string) ([]string, error) {
	likes, err := m.findLikes(ctx, bson.M{"shortId": shortID})
	if err != nil {
		return nil, fmt.Errorf("find likes: %w", err)
	}
	ids := make([]string, 0, len(likes))
	for _, like := range likes {
		ids = append(ids, like.UserID)
	}
	return ids, nil
}

// DeleteUserData removes everything owned by or referencing userID. The
// steps run in sequence; a failure part way leaves the remaining data for a
// later retry of the same call.
func (m *Mongo) DeleteUserData(ctx context.Context, userID string) (Cascade, error) {
	out := Cascade{}

	owned, err := m.ShortsByOwner(ctx, userID)
	if err != nil {
		return Cascade{}, err
	}
	out.Shorts = make([]string, 0, len(owned))
	for _, short := range owned {
		out.Shorts = append(out.Shorts, short.ID)
	}

	received := bson.M{"$or": bson.A{
		bson.M{"ownerId": userID},
		bson.M{"shortId": bson.M{"$in": out.Shorts}},
	}}
	if _, err := m.likes.DeleteMany(ctx, received); err != nil {
		return Cascade{}, fmt.Errorf("delete received likes: %w", err)
	}
	if _, err := m.shorts.DeleteMany(ctx, bson.M{"ownerId": userID}); err != nil {
		return Cascade{}, fmt.Errorf("delete shorts: %w", err)
	}

	given, err := m.findLikes(ctx, bson.M{"userId": userID})
	if err != nil {
		return Cascade{}, fmt.Errorf("find given likes: %w", err)
	}
	out.Unliked = make([]string, 0, len(given))
	for _, like := range given {
		out.Unliked = append(out.Unliked, like.ShortID)
	}
	if _, err := m.likes.DeleteMany(ctx, bson.M{"userId": userID}); err != nil {
		return Cascade{}, fmt.Errorf("delete given likes: %w", err)
	}
	if len(out.Unliked) > 0 {
		if _, err := m.shorts.UpdateMany(ctx,
			bson.M{"_id": bson.M{"$in": out.Unliked}},
			bson.M{"$inc": bson.M{"totalLikes": -1}},
		); err != nil {
			return Cascade{}, fmt.Errorf("decrement likes: %w", err)
		}
	}

	if out.Followers, err = m.Followers(ctx, userID); err != nil {
		return Cascade{}, err
	}
	if out.Followees, err = m.Followees(ctx, userID); err != nil {
		return Cascade{}, err
	}
	touching := bson.M{"$or": bson.A{bson.M{"follower": userID}, bson.M{"followee": userID}}}
	if _, err := m.following.DeleteMany(ctx, touching); err != nil {
		return Cascade{}, fmt.Errorf("delete following: %w", err)
	}

	return out, nil
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *Mongo) findFollowing(ctx context.Context, filter bson.M, sortKey string) ([]models.Following, error) {
	cur, err := m.following.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: sortKey, Value: 1}}))
	if err != nil {
		return nil, err
	}
	var edges []models.Following
	if err := cur.All(ctx, &edges); err != nil {
		return nil, err
	}
	return edges, nil
}

func (m *Mongo) findLikes(ctx context.Context, filter bson.M) ([]models.Like, error) {
	cur, err := m.likes.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "userId", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var likes []models.Like
	if err := cur.All(ctx, &likes); err != nil {
		return nil, err
	}
	return likes, nil
}

var _ Backend = (*Mongo)(nil)
