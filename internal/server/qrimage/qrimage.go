// Package qrimage renders QR payloads to PNG and publishes them to S3
// compatible storage for inclusion in invitation emails.
package qrimage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	DefaultSize    = 280
	DefaultLinkTTL = 24 * time.Hour
	ContentType    = "image/png"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

type objectStore interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type Options struct {
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
	Bucket       string
	Size         int
	LinkTTL      time.Duration
}

// Renderer uploads rendered codes and hands out presigned links to them.
type Renderer struct {
	store   objectStore
	presign presigner
	bucket  string
	size    int
	linkTTL time.Duration
}

func New(ctx context.Context, opts Options) (*Renderer, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKey,
			opts.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
			// MinIO serves buckets by path
			o.UsePathStyle = true
		}
	})

	return newRenderer(client, s3.NewPresignClient(client), opts), nil
}

func newRenderer(store objectStore, presign presigner, opts Options) *Renderer {
	if opts.Size <= 0 {
		opts.Size = DefaultSize
	}
	if opts.LinkTTL <= 0 {
		opts.LinkTTL = DefaultLinkTTL
	}
	return &Renderer{store: store, presign: presign, bucket: opts.Bucket, size: opts.Size, linkTTL: opts.LinkTTL}
}

// PNG renders payload with high error correction.
func PNG(payload string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultSize
	}
	return qrcode.Encode(payload, qrcode.High, size)
}

// Key is the object key of an attendee's code. Re-issuing overwrites it.
func Key(eventID, attendeeID string) string {
	return path.Join("qr", eventID, attendeeID+".png")
}

// Render uploads the code for payload and returns a presigned GET link.
func (r *Renderer) Render(ctx context.Context, eventID, attendeeID, payload string) (string, error) {
	png, err := PNG(payload, r.size)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}

	key := Key(eventID, attendeeID)
	if _, err := r.store.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(png),
		ContentLength: aws.Int64(int64(len(png))),
		ContentType:   aws.String(ContentType),
	}); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	req, err := r.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(r.linkTTL))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}
