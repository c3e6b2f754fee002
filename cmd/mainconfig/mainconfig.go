// Package mainconfig builds the AWS SDK configuration shared by the Bedrock
// completion client and the SES notifier.
package mainconfig

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	appconfig "github.com/wolfman30/therapymatch-ai/internal/config"
)

const (
	defaultAWSRegion = "ap-south-1"
	// LLM calls already run inside a shared timeout budget, so SDK retries stay short.
	maxAWSAttempts = 2
)

// LoadAWSConfig resolves region and credentials from cfg, falling back to the
// default provider chain. AWS_ENDPOINT_OVERRIDE points every client at one base
// endpoint, which is how LocalStack is reached in development.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	if cfg == nil {
		return aws.Config{}, errors.New("mainconfig: config is required")
	}
	region := strings.TrimSpace(cfg.AWSRegion)
	if region == "" {
		region = defaultAWSRegion
	}

	loaders := []func(*config.LoadOptions) error{
		config.WithRegion(region),
		config.WithRetryMaxAttempts(maxAWSAttempts),
	}
	if key, secret := strings.TrimSpace(cfg.AWSAccessKeyID), strings.TrimSpace(cfg.AWSSecretAccessKey); key != "" && secret != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(key, secret, ""),
		))
	}
	if endpoint := strings.TrimSpace(cfg.AWSEndpointOverride); endpoint != "" {
		loaders = append(loaders, config.WithBaseEndpoint(endpoint))
	}

	return config.LoadDefaultConfig(ctx, loaders...)
}
