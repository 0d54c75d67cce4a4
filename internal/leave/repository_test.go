package leave

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/hrdesk/hrdesk/internal/platform/httpx"
)

func TestBuildQuery(t *testing.T) {
	emp := primitive.NewObjectID()
	repo := &MongoRepository{}

	cases := []struct {
		name   string
		filter ListFilter
		want   bson.M
	}{
		{name: "empty", filter: ListFilter{}, want: bson.M{}},
		{name: "employee", filter: ListFilter{EmployeeID: emp.Hex()}, want: bson.M{"employeeId": emp}},
		{name: "pending", filter: ListFilter{Status: StatusPending}, want: bson.M{"status": "PENDING"}},
		{
			name:   "rejected includes legacy spelling",
			filter: ListFilter{Status: StatusRejected},
			want:   bson.M{"status": bson.M{"$in": bson.A{"REJECTED", "DENIED"}}},
		},
		{
			name:   "employee and status",
			filter: ListFilter{EmployeeID: emp.Hex(), Status: StatusApproved},
			want:   bson.M{"employeeId": emp, "status": "APPROVED"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := repo.buildQuery(tc.filter)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := repo.buildQuery(ListFilter{EmployeeID: "emp"})
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestUndecidedFilter(t *testing.T) {
	oid := primitive.NewObjectID()
	assert.Equal(t, bson.M{
		"_id":    oid,
		"status": bson.M{"$nin": bson.A{"APPROVED", "REJECTED", "DENIED"}},
	}, undecidedFilter(oid))
}

func TestPatchSet(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, bson.M{"updatedAt": now}, patchSet(Patch{}, now))

	kind := TypeSick
	end := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	reason := "flu"
	status := StatusPending
	assert.Equal(t, bson.M{
		"updatedAt": now,
		"type":      "SICK",
		"endDate":   end,
		"reason":    "flu",
		"status":    "PENDING",
	}, patchSet(Patch{Type: &kind, EndDate: &end, Reason: &reason, Status: &status}, now))
}

func TestRequestDocumentToDomain(t *testing.T) {
	approver := primitive.NewObjectID()
	doc := requestDocument{
		ID:         primitive.NewObjectID(),
		EmployeeID: primitive.NewObjectID(),
		ApproverID: &approver,
		Type:       "holiday",
		Status:     "DENIED",
	}
	req := doc.toDomain()
	assert.Equal(t, StatusRejected, req.Status)
	assert.Equal(t, TypeOther, req.Type)
	assert.Equal(t, approver.Hex(), req.ApproverID)
}
