// internal/common/aws/sns.go
package aws

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

func NewSNSClient(cfg aws.Config) *sns.Client {
	return sns.NewFromConfig(cfg)
}
