/*
Package awsclients supplies concrete aws-sdk-go-v2 implementations of the
cloud package's capability interfaces, plus the identity broker that hands
a worker role-scoped clients for one (account, region) pair.
*/
package awsclients

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/cuemby/fleetsched/pkg/cloud"
)

// AssumeRoleFactory implements cloud.IdentityBroker by assuming a fixed
// role name in the target account via STS, using the orchestrator's own
// credentials as the base session.
type AssumeRoleFactory struct {
	baseConfig aws.Config
	stsClient  *sts.Client
	roleName   string
}

// NewAssumeRoleFactory loads the ambient AWS config (environment,
// instance profile, or shared config file, in the usual SDK precedence
// order) once and reuses it as the base session for every assumed role.
func NewAssumeRoleFactory(ctx context.Context, roleName string) (*AssumeRoleFactory, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("awsclients: load base config: %w", err)
	}
	return &AssumeRoleFactory{
		baseConfig: cfg,
		stsClient:  sts.NewFromConfig(cfg),
		roleName:   roleName,
	}, nil
}

// AssumeRole returns a RoleHandle whose clients are bound to account and
// region, using a cached assume-role credential provider that the SDK
// refreshes automatically as the assumed session nears expiry. With an
// empty role name the clients keep the base session's own credentials.
func (f *AssumeRoleFactory) AssumeRole(ctx context.Context, account, region string) (cloud.RoleHandle, error) {
	cfg := f.baseConfig.Copy()
	cfg.Region = region
	if f.roleName != "" {
		roleARN := fmt.Sprintf("arn:aws:iam::%s:role/%s", account, f.roleName)
		provider := stscreds.NewAssumeRoleProvider(f.stsClient, roleARN)
		cfg.Credentials = aws.NewCredentialsCache(provider)
	}

	return &roleHandle{
		account: account,
		region:  region,
		ec2:     &computeService{client: ec2.NewFromConfig(cfg)},
		rds:     &databaseService{client: rds.NewFromConfig(cfg)},
		asg:     &asgService{client: autoscaling.NewFromConfig(cfg)},
	}, nil
}

type roleHandle struct {
	account string
	region  string
	ec2     *computeService
	rds     *databaseService
	asg     *asgService
}

func (h *roleHandle) Compute() cloud.ComputeService   { return h.ec2 }
func (h *roleHandle) Database() cloud.DatabaseService { return h.rds }
func (h *roleHandle) ASG() cloud.ASGService           { return h.asg }
func (h *roleHandle) Account() string                 { return h.account }
func (h *roleHandle) Region() string                  { return h.region }
