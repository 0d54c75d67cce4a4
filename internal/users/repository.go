package users

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hrdesk/hrdesk/internal/platform/docstore"
	"github.com/hrdesk/hrdesk/internal/platform/httpx"
	"github.com/hrdesk/hrdesk/internal/rbac"
	"github.com/hrdesk/hrdesk/internal/shared"
)

// ErrNotFound is returned when no user matches.
var ErrNotFound = httpx.Errorf(httpx.ErrNotFound, "User not found")

// ErrDuplicateEmail is returned when the email is already registered.
var ErrDuplicateEmail = httpx.Errorf(httpx.ErrDuplicate, "User with this email already exists")

type userDocument struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty"`
	Name         string              `bson:"name"`
	Email        string              `bson:"email"`
	PasswordHash string              `bson:"passwordHash"`
	Role         string              `bson:"role,omitempty"`
	Roles        []string            `bson:"roles"`
	Department   string              `bson:"department,omitempty"`
	ManagerID    *primitive.ObjectID `bson:"managerId,omitempty"`
	IsActive     bool                `bson:"isActive"`
	CreatedAt    time.Time           `bson:"createdAt"`
	UpdatedAt    time.Time           `bson:"updatedAt"`
}

func (d userDocument) toDomain() User {
	raw := append([]string{d.Role}, d.Roles...)
	roles, err := rbac.NewRoleSet(raw...)
	if err != nil {
		roles = rbac.RoleSet{rbac.RoleEmployee}
	}
	u := User{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Role:         roles.Primary(),
		Roles:        roles,
		Department:   d.Department,
		IsActive:     d.IsActive,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if d.ManagerID != nil {
		u.ManagerID = d.ManagerID.Hex()
	}
	return u
}

// MongoRepository provides MongoDB backed persistence.
type MongoRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoRepository constructs a repository over the users collection.
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(docstore.UsersCollection), now: time.Now}
}

// listQuery translates filter into a find query. Role matches the roles array
// or the legacy single role field.
func listQuery(filter ListFilter) bson.M {
	query := bson.M{}
	if filter.Role != "" {
		query["$or"] = bson.A{bson.M{"roles": string(filter.Role)}, bson.M{"role": string(filter.Role)}}
	}
	if filter.Department != "" {
		query["department"] = filter.Department
	}
	if filter.Active != nil {
		query["isActive"] = *filter.Active
	}
	if filter.Query != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Query), Options: "i"}
		search := bson.A{bson.M{"name": pattern}, bson.M{"email": pattern}}
		if _, ok := query["$or"]; ok {
			query["$and"] = bson.A{bson.M{"$or": query["$or"]}, bson.M{"$or": search}}
			delete(query, "$or")
		} else {
			query["$or"] = search
		}
	}
	return query
}

// List returns a page of users and the total match count.
func (r *MongoRepository) List(ctx context.Context, filter ListFilter, page shared.PageRequest) ([]User, int64, error) {
	query := listQuery(filter)
	total, err := r.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(page.Skip()).
		SetLimit(int64(page.PerPage)).
		SetProjection(bson.M{"passwordHash": 0})
	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	out := make([]User, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, total, nil
}

// Get fetches a user by id.
func (r *MongoRepository) Get(ctx context.Context, id string) (User, error) {
	oid, err := docstore.ParseID(id, "User")
	if err != nil {
		return User{}, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

// FindByEmail fetches a user by normalised email.
func (r *MongoRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoRepository) findOne(ctx context.Context, query bson.M) (User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, query).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return doc.toDomain(), nil
}

// Insert stores a new user.
func (r *MongoRepository) Insert(ctx context.Context, u User) (User, error) {
	now := r.now().UTC()
	doc := userDocument{
		ID:           primitive.NewObjectID(),
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Roles.Primary()),
		Roles:        u.Roles.Strings(),
		Department:   u.Department,
		IsActive:     u.IsActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if u.ManagerID != "" {
		mid, err := docstore.ParseID(u.ManagerID, "Manager")
		if err != nil {
			return User{}, err
		}
		doc.ManagerID = &mid
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if docstore.IsDuplicateKey(err) {
			return User{}, ErrDuplicateEmail
		}
		return User{}, err
	}
	return doc.toDomain(), nil
}

// Update applies patch and returns the stored document.
func (r *MongoRepository) Update(ctx context.Context, id string, patch Patch) (User, error) {
	oid, err := docstore.ParseID(id, "User")
	if err != nil {
		return User{}, err
	}
	update, err := updateDocument(patch, r.now().UTC())
	if err != nil {
		return User{}, err
	}
	return r.findOneAndUpdate(ctx, bson.M{"_id": oid}, update)
}

// updateDocument builds the $set/$unset update for patch. An empty ManagerID
// unsets the field.
func updateDocument(patch Patch, now time.Time) (bson.M, error) {
	set := bson.M{"updatedAt": now}
	update := bson.M{}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Email != nil {
		set["email"] = *patch.Email
	}
	if patch.Department != nil {
		set["department"] = *patch.Department
	}
	if patch.IsActive != nil {
		set["isActive"] = *patch.IsActive
	}
	if patch.ManagerID != nil {
		if *patch.ManagerID == "" {
			update["$unset"] = bson.M{"managerId": ""}
		} else {
			mid, err := docstore.ParseID(*patch.ManagerID, "Manager")
			if err != nil {
				return nil, err
			}
			set["managerId"] = mid
		}
	}
	update["$set"] = set
	return update, nil
}

// SetPassword replaces the hash of the user with email.
func (r *MongoRepository) SetPassword(ctx context.Context, email, hash string) (User, error) {
	return r.findOneAndUpdate(ctx, bson.M{"email": email}, bson.M{"$set": bson.M{
		"passwordHash": hash,
		"updatedAt":    r.now().UTC(),
	}})
}

func (r *MongoRepository) findOneAndUpdate(ctx context.Context, query, update bson.M) (User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc userDocument
	if err := r.coll.FindOneAndUpdate(ctx, query, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return User{}, ErrNotFound
		}
		if docstore.IsDuplicateKey(err) {
			return User{}, ErrDuplicateEmail
		}
		return User{}, err
	}
	return doc.toDomain(), nil
}

// Delete removes a user.
func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	oid, err := docstore.ParseID(id, "User")
	if err != nil {
		return err
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByRole returns the number of active users holding each role.
func (r *MongoRepository) CountByRole(ctx context.Context) (map[rbac.Role]int64, error) {
	cursor, err := r.coll.Aggregate(ctx, countByRolePipeline())
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var rows []struct {
		Role  string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make(map[rbac.Role]int64, len(rows))
	for _, row := range rows {
		if role, err := rbac.ParseRole(row.Role); err == nil {
			out[role] += row.Count
		}
	}
	return out, nil
}

func countByRolePipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"isActive": true}}},
		{{Key: "$unwind", Value: "$roles"}},
		{{Key: "$group", Value: bson.M{"_id": "$roles", "count": bson.M{"$sum": 1}}}},
	}
}
