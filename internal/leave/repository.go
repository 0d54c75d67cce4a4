package leave

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hrdesk/hrdesk/internal/platform/docstore"
	"github.com/hrdesk/hrdesk/internal/platform/httpx"
	"github.com/hrdesk/hrdesk/internal/shared"
)

var (
	// ErrNotFound is returned when no request matches.
	ErrNotFound = httpx.Errorf(httpx.ErrNotFound, "Leave request not found")
	// ErrDecided is returned when an edit targets an approved or rejected request.
	ErrDecided = httpx.Errorf(httpx.ErrValidation, "A decided leave request cannot be edited")
)

// decidedStatuses includes the legacy DENIED spelling.
var decidedStatuses = bson.A{string(StatusApproved), string(StatusRejected), "DENIED"}

type requestDocument struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty"`
	EmployeeID   primitive.ObjectID  `bson:"employeeId"`
	ApproverID   *primitive.ObjectID `bson:"approverId,omitempty"`
	Type         string              `bson:"type"`
	Status       string              `bson:"status"`
	StartDate    time.Time           `bson:"startDate"`
	EndDate      time.Time           `bson:"endDate"`
	Reason       string              `bson:"reason,omitempty"`
	DecisionNote string              `bson:"decisionNote,omitempty"`
	DecidedAt    *time.Time          `bson:"decidedAt,omitempty"`
	CreatedAt    time.Time           `bson:"createdAt"`
	UpdatedAt    time.Time           `bson:"updatedAt"`
}

func (d requestDocument) toDomain() Request {
	status, err := ParseStatus(d.Status)
	if err != nil {
		status = StatusPending
	}
	kind, err := ParseType(d.Type)
	if err != nil {
		kind = TypeOther
	}
	r := Request{
		ID:           d.ID.Hex(),
		EmployeeID:   d.EmployeeID.Hex(),
		Type:         kind,
		Status:       status,
		StartDate:    d.StartDate.UTC(),
		EndDate:      d.EndDate.UTC(),
		Reason:       d.Reason,
		DecisionNote: d.DecisionNote,
		DecidedAt:    d.DecidedAt,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if d.ApproverID != nil {
		r.ApproverID = d.ApproverID.Hex()
	}
	return r
}

// MongoRepository provides MongoDB backed persistence.
type MongoRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoRepository constructs a repository over the leave_requests collection.
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(docstore.LeaveRequestsCollection), now: time.Now}
}

func (r *MongoRepository) buildQuery(filter ListFilter) (bson.M, error) {
	query := bson.M{}
	if filter.EmployeeID != "" {
		oid, err := docstore.ParseID(filter.EmployeeID, "Employee")
		if err != nil {
			return nil, err
		}
		query["employeeId"] = oid
	}
	switch filter.Status {
	case "":
	case StatusRejected:
		query["status"] = bson.M{"$in": bson.A{string(StatusRejected), "DENIED"}}
	default:
		query["status"] = string(filter.Status)
	}
	return query, nil
}

// List returns a page of requests, newest first, and the total match count.
func (r *MongoRepository) List(ctx context.Context, filter ListFilter, page shared.PageRequest) ([]Request, int64, error) {
	query, err := r.buildQuery(filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := r.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(page.Skip()).
		SetLimit(int64(page.PerPage))
	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var docs []requestDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	out := make([]Request, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, total, nil
}

// Get fetches a request by id.
func (r *MongoRepository) Get(ctx context.Context, id string) (Request, error) {
	oid, err := docstore.ParseID(id, "Leave request")
	if err != nil {
		return Request{}, err
	}
	var doc requestDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Request{}, ErrNotFound
		}
		return Request{}, err
	}
	return doc.toDomain(), nil
}

// Insert stores a new request.
func (r *MongoRepository) Insert(ctx context.Context, req Request) (Request, error) {
	employee, err := docstore.ParseID(req.EmployeeID, "Employee")
	if err != nil {
		return Request{}, err
	}
	now := r.now().UTC()
	doc := requestDocument{
		ID:         primitive.NewObjectID(),
		EmployeeID: employee,
		Type:       string(req.Type),
		Status:     string(req.Status),
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		Reason:     req.Reason,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return Request{}, err
	}
	return doc.toDomain(), nil
}

// Update applies patch and returns the stored document.
func (r *MongoRepository) Update(ctx context.Context, id string, patch Patch) (Request, error) {
	oid, err := docstore.ParseID(id, "Leave request")
	if err != nil {
		return Request{}, err
	}
	updated, err := r.findOneAndUpdate(ctx, undecidedFilter(oid), bson.M{"$set": patchSet(patch, r.now().UTC())})
	if !errors.Is(err, ErrNotFound) {
		return updated, err
	}
	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": oid}, options.Count().SetLimit(1))
	if err != nil {
		return Request{}, err
	}
	if n > 0 {
		return Request{}, ErrDecided
	}
	return Request{}, ErrNotFound
}

func patchSet(patch Patch, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	if patch.Type != nil {
		set["type"] = string(*patch.Type)
	}
	if patch.StartDate != nil {
		set["startDate"] = *patch.StartDate
	}
	if patch.EndDate != nil {
		set["endDate"] = *patch.EndDate
	}
	if patch.Reason != nil {
		set["reason"] = *patch.Reason
	}
	if patch.Status != nil {
		set["status"] = string(*patch.Status)
	}
	return set
}

// undecidedFilter matches id only while no decision has been written.
func undecidedFilter(oid primitive.ObjectID) bson.M {
	return bson.M{"_id": oid, "status": bson.M{"$nin": decidedStatuses}}
}

// Decide writes the decision fields unconditionally.
func (r *MongoRepository) Decide(ctx context.Context, id string, d Decision) (Request, error) {
	approver, err := docstore.ParseID(d.ApproverID, "Approver")
	if err != nil {
		return Request{}, err
	}
	oid, err := docstore.ParseID(id, "Leave request")
	if err != nil {
		return Request{}, err
	}
	at := d.At.UTC()
	return r.findOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"status":       string(d.Status),
		"approverId":   approver,
		"decisionNote": d.Note,
		"decidedAt":    at,
		"updatedAt":    at,
	}})
}

func (r *MongoRepository) findOneAndUpdate(ctx context.Context, filter, update bson.M) (Request, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc requestDocument
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Request{}, ErrNotFound
		}
		return Request{}, err
	}
	return doc.toDomain(), nil
}

// Delete removes a request.
func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	oid, err := docstore.ParseID(id, "Leave request")
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

// Summarize counts requests by status and type in a single aggregation.
func (r *MongoRepository) Summarize(ctx context.Context) (Summary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$facet", Value: bson.M{
			"byStatus": bson.A{bson.M{"$group": bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
			"byType":   bson.A{bson.M{"$group": bson.M{"_id": "$type", "count": bson.M{"$sum": 1}}}},
		}}},
	}
	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return Summary{}, err
	}
	defer cursor.Close(ctx)

	type bucket struct {
		Key   string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	var rows []struct {
		ByStatus []bucket `bson:"byStatus"`
		ByType   []bucket `bson:"byType"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return Summary{}, err
	}
	summary := Summary{ByStatus: map[Status]int64{}, ByType: map[Type]int64{}, GeneratedAt: r.now().UTC()}
	if len(rows) == 0 {
		return summary, nil
	}
	for _, b := range rows[0].ByStatus {
		status, err := ParseStatus(b.Key)
		if err != nil {
			continue
		}
		summary.ByStatus[status] += b.Count
		summary.Total += b.Count
	}
	for _, b := range rows[0].ByType {
		kind, err := ParseType(b.Key)
		if err != nil {
			kind = TypeOther
		}
		summary.ByType[kind] += b.Count
	}
	return summary, nil
}
