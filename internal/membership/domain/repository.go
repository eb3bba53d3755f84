package domain

import (
	"context"
	"encoding/json"
)

// Document collections used by the membership subsystem.
const (
	CollectionUsers       = "users"
	CollectionEmployees   = "employees"
	CollectionPayrollRuns = "payroll_runs"
	CollectionFiles       = "files"
)

// Document is a JSON object stored in a collection.
type Document map[string]any

// Operator compares a document field with a value.
type Operator string

const (
	OpEq  Operator = "eq"
	OpGte Operator = "gte"
)

// Condition is a single field predicate.
type Condition struct {
	Field string
	Op    Operator
	Value any
}

// Filter is a conjunction of conditions.
type Filter []Condition

// Eq builds an equality condition.
func Eq(field string, value any) Condition {
	return Condition{Field: field, Op: OpEq, Value: value}
}

// Gte builds a greater-or-equal condition on a numeric field.
func Gte(field string, value any) Condition {
	return Condition{Field: field, Op: OpGte, Value: value}
}

// DocumentStore is the external document database.
type DocumentStore interface {
	// ReadDocument returns ErrDocumentNotFound when the document does not exist.
	ReadDocument(ctx context.Context, collection, id string) (Document, error)
	// WriteDocument merges patch into the document, creating it if needed.
	WriteDocument(ctx context.Context, collection, id string, patch Document) error
	CountWhere(ctx context.Context, collection string, filter Filter) (int64, error)
	SumWhere(ctx context.Context, collection string, filter Filter, field string) (float64, error)
	ListIDs(ctx context.Context, collection string) ([]string, error)
}

// KeyValueStore is the persistent local cache. Get reports false for missing keys.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores a cache entry, which the store may expire.
	Set(ctx context.Context, key, value string) error
	// SetPersistent stores configuration that must never expire.
	SetPersistent(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// AuthContext supplies the signed-in user. An empty id means no user.
type AuthContext interface {
	CurrentUserID(ctx context.Context) string
}

// Notifier delivers fire-and-forget change notifications.
type Notifier interface {
	Notify(ctx context.Context, event string, payload any)
}

// SubscriptionRepository persists subscriptions.
type SubscriptionRepository interface {
	// FindByUserID returns nil, nil when the user has no subscription.
	FindByUserID(ctx context.Context, userID string) (*Subscription, error)
	Save(ctx context.Context, sub *Subscription) error
	// SaveUsage persists only the usage snapshot.
	SaveUsage(ctx context.Context, sub *Subscription) error
	ListUserIDs(ctx context.Context) ([]string, error)
}

// Notification event names.
const (
	EventPlanChanged    = "membership.plan_changed"
	EventUsageRefreshed = "membership.usage_refreshed"
	EventStatusChanged  = "membership.status_changed"
	EventCatalogChanged = "membership.catalog_changed"
)

// PlanChangedPayload is sent with EventPlanChanged.
type PlanChangedPayload struct {
	UserID string             `json:"userId"`
	PlanID PlanID             `json:"planId"`
	Status SubscriptionStatus `json:"status"`
}

// Subject returns the user the event concerns.
func (p PlanChangedPayload) Subject() string { return p.UserID }

// UsageRefreshedPayload is sent with EventUsageRefreshed.
type UsageRefreshedPayload struct {
	UserID string               `json:"userId"`
	Usage  map[Resource]float64 `json:"usage"`
	Failed []Resource           `json:"failed,omitempty"`
}

// Subject returns the user the event concerns.
func (p UsageRefreshedPayload) Subject() string { return p.UserID }

// CatalogChangedPayload is sent with EventCatalogChanged. It concerns every
// user, so it has no subject.
type CatalogChangedPayload struct {
	OverriddenPlans []PlanID `json:"overriddenPlans"`
}

// DecodePayload unmarshals a notification payload.
func DecodePayload[T any](raw json.RawMessage) (T, error) {
	var v T
	err := json.Unmarshal(raw, &v)
	return v, err
}
