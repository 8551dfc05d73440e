package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/picklr-io/infraviz/internal/ir"
)

// DefaultPrefix is the key prefix used when none is configured.
const DefaultPrefix = "infraviz/stacks"

// s3API is the subset of the S3 client used for snapshots.
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// dynamoAPI is the subset of the DynamoDB client used for locking.
type dynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// S3 keeps snapshots as objects in a bucket, with optional DynamoDB locking.
type S3 struct {
	bucket    string
	prefix    string
	lockTable string
	key       string

	s3Client s3API
	dbClient dynamoAPI
}

// NewS3 loads the default AWS configuration for cfg.Region and cfg.Profile.
func NewS3(ctx context.Context, cfg Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 snapshots require a bucket")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	var db dynamoAPI
	if cfg.LockTable != "" {
		db = dynamodb.NewFromConfig(awsCfg)
	}
	return newS3(cfg, s3.NewFromConfig(awsCfg), db), nil
}

func newS3(cfg Config, s3Client s3API, dbClient dynamoAPI) *S3 {
	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &S3{
		bucket:    cfg.Bucket,
		prefix:    prefix,
		lockTable: cfg.LockTable,
		key:       cfg.Key,
		s3Client:  s3Client,
		dbClient:  dbClient,
	}
}

func (b *S3) objectKey(stackID string) string {
	return path.Join(b.prefix, stackID+snapshotExt)
}

func (b *S3) Read(ctx context.Context, stackID string) (*ir.StackRecord, error) {
	key := b.objectKey(stackID)
	out, err := b.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, stackID)
		}
		return nil, fmt.Errorf("failed to read snapshot from s3://%s/%s: %w", b.bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read S3 object body: %w", err)
	}
	return decode(data, b.key)
}

func (b *S3) Write(ctx context.Context, rec *ir.StackRecord) error {
	data, err := encode(rec, b.key)
	if err != nil {
		return err
	}

	key := b.objectKey(rec.StackID)
	_, err = b.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(b.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(data),
		ContentType:          aws.String("application/json"),
		ServerSideEncryption: s3types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return fmt.Errorf("failed to write snapshot to s3://%s/%s: %w", b.bucket, key, err)
	}
	return nil
}

func (b *S3) List(ctx context.Context) ([]string, error) {
	var ids []string
	var token *string
	for {
		out, err := b.s3Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(b.bucket),
			Prefix:            aws.String(b.prefix + "/"),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list snapshots in s3://%s/%s: %w", b.bucket, b.prefix, err)
		}
		for _, obj := range out.Contents {
			name := path.Base(aws.ToString(obj.Key))
			if strings.HasSuffix(name, snapshotExt) {
				ids = append(ids, strings.TrimSuffix(name, snapshotExt))
			}
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}
	sort.Strings(ids)
	return ids, nil
}

// Lock writes a conditional lock item keyed by the snapshot's object key.
// Without a lock table it does nothing.
func (b *S3) Lock(ctx context.Context, stackID string) error {
	if b.dbClient == nil {
		return nil
	}

	key := b.objectKey(stackID)
	_, err := b.dbClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(b.lockTable),
		Item: map[string]dbtypes.AttributeValue{
			"LockID":  &dbtypes.AttributeValueMemberS{Value: key},
			"Info":    &dbtypes.AttributeValueMemberS{Value: fmt.Sprintf("infraviz-%d-%d", os.Getpid(), time.Now().UnixNano())},
			"Created": &dbtypes.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
		ConditionExpression: aws.String("attribute_not_exists(LockID)"),
	})
	if err != nil {
		var ccf *dbtypes.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("snapshot of stack %s is locked by another process. If this is an error, "+
				"manually delete the lock item with LockID=%q from DynamoDB table %q", stackID, key, b.lockTable)
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	return nil
}

func (b *S3) Unlock(ctx context.Context, stackID string) error {
	if b.dbClient == nil {
		return nil
	}

	_, err := b.dbClient.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(b.lockTable),
		Key: map[string]dbtypes.AttributeValue{
			"LockID": &dbtypes.AttributeValueMemberS{Value: b.objectKey(stackID)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}
