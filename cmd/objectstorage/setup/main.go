package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"objectstorage/internal/config"
	s3store "objectstorage/internal/storage/s3"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Unable to load config: %v", err)
	}
	bucketName := cfg.KeyStore.Bucket
	if bucketName == "" {
		bucketName = s3store.DefaultConfig.BucketName
	}
	prefix := cfg.KeyStore.Prefix
	if prefix == "" {
		prefix = s3store.DefaultConfig.KeyPrefix
	}

	// Use default AWS configuration (from ~/.aws/credentials)
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.KeyStore.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.KeyStore.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		log.Fatalf("Unable to load SDK config: %v", err)
	}

	identity, err := sts.NewFromConfig(awsCfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		log.Fatalf("Unable to verify credentials: %v", err)
	}
	fmt.Printf("Running as %s (account %s)\n", aws.ToString(identity.Arn), aws.ToString(identity.Account))

	client := s3.NewFromConfig(awsCfg)

	// Check if bucket exists
	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucketName),
	})
	if err != nil {
		fmt.Printf("Creating bucket %s...\n", bucketName)
		input := &s3.CreateBucketInput{
			Bucket: aws.String(bucketName),
		}

		// Only add location constraint if not in us-east-1
		if awsCfg.Region != "us-east-1" {
			input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
				LocationConstraint: types.BucketLocationConstraint(awsCfg.Region),
			}
		}

		if _, err := client.CreateBucket(ctx, input); err != nil {
			log.Fatalf("Unable to create bucket: %v", err)
		}
	} else {
		fmt.Printf("Bucket %s already exists\n", bucketName)
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(prefix),
	})
	if err != nil {
		log.Printf("Warning: Unable to create folder %s: %v", prefix, err)
	} else {
		fmt.Printf("Created folder: %s\n", prefix)
	}

	if _, err := s3store.NewClient(ctx, awsCfg, bucketName, s3store.WithKeyPrefix(prefix)); err != nil {
		log.Fatalf("Key store check failed: %v", err)
	}

	fmt.Println("\nSetup completed successfully!")
	fmt.Println("\nKey store configuration:")
	fmt.Printf("- Bucket: %s\n", bucketName)
	fmt.Printf("- Region: %s\n", awsCfg.Region)
	fmt.Printf("- Prefix: %s\n", prefix)
	fmt.Println("\nSet OBJECTSTORAGE_KEYSTORE_BACKEND=s3 and OBJECTSTORAGE_SYSTEM_KEY=device to use it.")
}
