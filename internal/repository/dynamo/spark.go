// Package dynamo stores Sparks in a single DynamoDB table. Writes are
// conditional on the stored Version attribute.
package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ignite/spark-tracker/internal/domain"
	"github.com/ignite/spark-tracker/internal/service/tracker"
)

const (
	// OwnerIndex is the GSI over (OwnerID, CreatedNS).
	OwnerIndex = "owner-index"

	recordSK = "RECORD"
	tokenSK  = "TOKEN"
)

// API is the subset of *dynamodb.Client the repository uses.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, opts ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, opts ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// SparkItem is the stored shape of a record. Data holds the full JSON
// document; the other attributes exist for keys, the owner index and
// filtering.
type SparkItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Token     string `dynamodbav:"Token"`
	OwnerID   string `dynamodbav:"OwnerID"`
	Status    string `dynamodbav:"Status"`
	CreatedNS int64  `dynamodbav:"CreatedNS"`
	ExpiresNS int64  `dynamodbav:"ExpiresNS,omitempty"`
	Version   int64  `dynamodbav:"Version"`
	Data      string `dynamodbav:"Data"`
}

// TokenItem maps a public token to its record.
type TokenItem struct {
	PK      string `dynamodbav:"PK"`
	SK      string `dynamodbav:"SK"`
	SparkID string `dynamodbav:"SparkID"`
}

// SparkRepo implements tracker.Repository on DynamoDB.
type SparkRepo struct {
	api   API
	table string
}

// NewSparkRepo creates a DynamoDB-backed Spark repository.
func NewSparkRepo(api API, table string) *SparkRepo {
	return &SparkRepo{api: api, table: table}
}

// NewSparkRepoFromConfig builds the client from an AWS config.
func NewSparkRepoFromConfig(cfg aws.Config, table string) *SparkRepo {
	return NewSparkRepo(dynamodb.NewFromConfig(cfg), table)
}

func sparkPK(id string) string    { return "SPARK#" + id }
func tokenPK(token string) string { return "TOKEN#" + token }

func key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

func toItem(rec *domain.EngagementRecord) (SparkItem, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return SparkItem{}, fmt.Errorf("encode spark: %w", err)
	}
	item := SparkItem{
		PK:        sparkPK(rec.ID),
		SK:        recordSK,
		Token:     rec.Token,
		OwnerID:   rec.OwnerID,
		Status:    string(rec.Status),
		CreatedNS: rec.CreatedAt.UnixNano(),
		Version:   rec.Version,
		Data:      string(data),
	}
	if rec.ExpiresAt != nil {
		item.ExpiresNS = rec.ExpiresAt.UnixNano()
	}
	return item, nil
}

func (it SparkItem) record() (*domain.EngagementRecord, error) {
	rec := &domain.EngagementRecord{}
	if err := json.Unmarshal([]byte(it.Data), rec); err != nil {
		return nil, fmt.Errorf("decode spark: %w", err)
	}
	rec.Version = it.Version
	return rec, nil
}

func (r *SparkRepo) Get(ctx context.Context, id string) (*domain.EngagementRecord, error) {
	out, err := r.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            key(sparkPK(id), recordSK),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get spark %s: %w", id, err)
	}
	if len(out.Item) == 0 {
		return nil, tracker.ErrNotFound
	}
	var item SparkItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal spark: %w", err)
	}
	return item.record()
}

func (r *SparkRepo) GetByToken(ctx context.Context, token string) (*domain.EngagementRecord, error) {
	out, err := r.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key:       key(tokenPK(token), tokenSK),
	})
	if err != nil {
		return nil, fmt.Errorf("resolve token: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, tracker.ErrNotFound
	}
	var ti TokenItem
	if err := attributevalue.UnmarshalMap(out.Item, &ti); err != nil {
		return nil, fmt.Errorf("unmarshal token: %w", err)
	}
	return r.Get(ctx, ti.SparkID)
}

func (r *SparkRepo) Create(ctx context.Context, rec *domain.EngagementRecord) error {
	if rec.ID == "" || rec.Token == "" {
		return fmt.Errorf("id and token required")
	}
	item, err := toItem(rec)
	if err != nil {
		return err
	}
	recAV, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal spark: %w", err)
	}
	tokAV, err := attributevalue.MarshalMap(TokenItem{PK: tokenPK(rec.Token), SK: tokenSK, SparkID: rec.ID})
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}

	_, err = r.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(r.table),
				Item:                recAV,
				ConditionExpression: aws.String("attribute_not_exists(PK)"),
			}},
			{Put: &types.Put{
				TableName:           aws.String(r.table),
				Item:                tokAV,
				ConditionExpression: aws.String("attribute_not_exists(PK)"),
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("create spark: %w", err)
	}
	return nil
}

func (r *SparkRepo) Put(ctx context.Context, rec *domain.EngagementRecord) error {
	expected := rec.Version
	next := *rec
	next.Version = expected + 1
	item, err := toItem(&next)
	if err != nil {
		return err
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal spark: %w", err)
	}

	_, err = r.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                av,
		ConditionExpression: aws.String("attribute_exists(PK) AND #v = :expected"),
		ExpressionAttributeNames: map[string]string{
			"#v": "Version",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(expected, 10)},
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		if len(ccf.Item) == 0 {
			return tracker.ErrNotFound
		}
		return tracker.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("put spark %s: %w", rec.ID, err)
	}
	rec.Version = expected + 1
	return nil
}

func (r *SparkRepo) List(ctx context.Context, ownerID string, f tracker.ListFilter) ([]domain.EngagementRecord, int, error) {
	cond := "OwnerID = :owner"
	vals := map[string]types.AttributeValue{
		":owner": &types.AttributeValueMemberS{Value: ownerID},
	}
	if !f.Since.IsZero() {
		cond += " AND CreatedNS >= :since"
		vals[":since"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(f.Since.UnixNano(), 10)}
	}

	var all []domain.EngagementRecord
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.api.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(r.table),
			IndexName:                 aws.String(OwnerIndex),
			KeyConditionExpression:    aws.String(cond),
			ExpressionAttributeValues: vals,
			ScanIndexForward:          aws.Bool(false),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, 0, fmt.Errorf("query sparks: %w", err)
		}
		for _, av := range out.Items {
			var item SparkItem
			if err := attributevalue.UnmarshalMap(av, &item); err != nil {
				return nil, 0, fmt.Errorf("unmarshal spark: %w", err)
			}
			if f.Status != "" && item.Status != f.Status {
				continue
			}
			rec, err := item.record()
			if err != nil {
				return nil, 0, err
			}
			all = append(all, *rec)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	total := len(all)
	if f.Offset >= total {
		return nil, total, nil
	}
	end := total
	if f.Limit > 0 && f.Offset+f.Limit < end {
		end = f.Offset + f.Limit
	}
	return all[f.Offset:end], total, nil
}

// ListExpired scans the table. The sweeper runs it on a slow interval, so a
// scan is preferred over maintaining a sparse expiry index.
func (r *SparkRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.EngagementRecord, error) {
	var due []SparkItem
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.api.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(r.table),
			FilterExpression: aws.String("SK = :rec AND ExpiresNS <= :now AND #s <> :expired AND #s <> :converted"),
			ExpressionAttributeNames: map[string]string{
				"#s": "Status",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":rec":       &types.AttributeValueMemberS{Value: recordSK},
				":now":       &types.AttributeValueMemberN{Value: strconv.FormatInt(now.UnixNano(), 10)},
				":expired":   &types.AttributeValueMemberS{Value: string(domain.StatusExpired)},
				":converted": &types.AttributeValueMemberS{Value: string(domain.StatusConverted)},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("scan expired sparks: %w", err)
		}
		for _, av := range out.Items {
			var item SparkItem
			if err := attributevalue.UnmarshalMap(av, &item); err != nil {
				return nil, fmt.Errorf("unmarshal spark: %w", err)
			}
			if item.SK != recordSK || item.ExpiresNS == 0 || item.ExpiresNS > now.UnixNano() {
				continue
			}
			if item.Status == string(domain.StatusExpired) || item.Status == string(domain.StatusConverted) {
				continue
			}
			due = append(due, item)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	sort.Slice(due, func(i, j int) bool { return due[i].ExpiresNS < due[j].ExpiresNS })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	out := make([]domain.EngagementRecord, 0, len(due))
	for _, item := range due {
		rec, err := item.record()
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

// EnsureTable creates the table and owner index if they don't exist.
func (r *SparkRepo) EnsureTable(ctx context.Context) error {
	_, err := r.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(r.table)})
	if err == nil {
		return nil
	}
	var nf *types.ResourceNotFoundException
	if !errors.As(err, &nf) {
		return fmt.Errorf("describe table %s: %w", r.table, err)
	}

	_, err = r.api.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:   aws.String(r.table),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("PK"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("SK"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("OwnerID"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("CreatedNS"), AttributeType: types.ScalarAttributeTypeN},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("PK"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("SK"), KeyType: types.KeyTypeRange},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{{
			IndexName: aws.String(OwnerIndex),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String("OwnerID"), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String("CreatedNS"), KeyType: types.KeyTypeRange},
			},
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		}},
	})
	if err != nil {
		return fmt.Errorf("create table %s: %w", r.table, err)
	}
	return nil
}
