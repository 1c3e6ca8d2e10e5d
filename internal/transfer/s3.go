package transfer

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3Config holds connection settings for an S3-compatible object store.
type S3Config struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// S3Uploader delivers files to an S3-compatible object store. The bucket and
// key prefix come from the tenant destination.
type S3Uploader struct {
	client *s3.S3
}

// NewS3Uploader constructs an S3Uploader.
func NewS3Uploader(cfg S3Config) (*S3Uploader, error) {
	awsCfg := &aws.Config{
		Region: aws.String(cfg.Region),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	if cfg.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("transfer: s3 session: %w", err)
	}
	return &S3Uploader{client: s3.New(sess)}, nil
}

// Upload puts content at dest.Prefix/name in dest.Bucket.
func (u *S3Uploader) Upload(ctx context.Context, dest Destination, name string, content []byte) error {
	key := path.Join(dest.Prefix, name)
	_, err := u.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(dest.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
		ContentType:   aws.String("text/plain; charset=ISO-8859-1"),
	})
	if err != nil {
		return fmt.Errorf("transfer: put s3 object %s/%s: %w", dest.Bucket, key, err)
	}
	return nil
}
